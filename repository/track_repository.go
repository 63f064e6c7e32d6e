package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"cratedig/models"
)

type trackRepository struct {
	db *gorm.DB
}

func NewTrackRepository(db *gorm.DB) TrackRepository {
	return &trackRepository{db: db}
}

func (r *trackRepository) ByID(ctx context.Context, id uint) (*models.Track, error) {
	var track models.Track
	if err := r.db.WithContext(ctx).First(&track, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &track, nil
}

func (r *trackRepository) ByExternalID(ctx context.Context, source models.Source, externalID string) (*models.Track, error) {
	if externalID == "" {
		return nil, ErrNotFound
	}
	column, err := models.ExternalIDColumn(source)
	if err != nil {
		return nil, err
	}

	var track models.Track
	if err := r.db.WithContext(ctx).Where(column+" = ?", externalID).First(&track).Error; err != nil {
		return nil, notFound(err)
	}
	return &track, nil
}

func (r *trackRepository) ByNormalized(ctx context.Context, normalizedArtist, normalizedTitle string) (*models.Track, error) {
	var track models.Track
	err := r.db.WithContext(ctx).
		Where("normalized_artist = ? AND normalized_title = ?", normalizedArtist, normalizedTitle).
		Order("id ASC").
		First(&track).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &track, nil
}

func (r *trackRepository) Search(ctx context.Context, term string, limit int) ([]models.Track, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []models.Track{}, nil
	}

	like := "%" + escapeLike(term) + "%"
	var tracks []models.Track
	err := r.db.WithContext(ctx).
		Where("LOWER(artist) LIKE ? ESCAPE '!' OR LOWER(title) LIKE ? ESCAPE '!' OR normalized_artist LIKE ? ESCAPE '!' OR normalized_title LIKE ? ESCAPE '!'", like, like, like, like).
		Order("id ASC").
		Limit(limit).
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}
	return tracks, nil
}

func (r *trackRepository) MostConnected(ctx context.Context, limit int) ([]TrackConnection, error) {
	type row struct {
		TrackID         uint
		CollectionCount int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.CollectionTrack{}).
		Select("track_id, COUNT(*) AS collection_count").
		Group("track_id").
		Order("collection_count DESC, track_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count track connections: %w", err)
	}
	if len(rows) == 0 {
		return []TrackConnection{}, nil
	}

	ids := make([]uint, len(rows))
	for i, rw := range rows {
		ids[i] = rw.TrackID
	}
	var tracks []models.Track
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to load connected tracks: %w", err)
	}
	byID := make(map[uint]models.Track, len(tracks))
	for _, t := range tracks {
		byID[t.ID] = t
	}

	result := make([]TrackConnection, 0, len(rows))
	for _, rw := range rows {
		if t, ok := byID[rw.TrackID]; ok {
			result = append(result, TrackConnection{Track: t, CollectionCount: rw.CollectionCount})
		}
	}
	return result, nil
}

func (r *trackRepository) NeedingEnrichment(ctx context.Context, limit int) ([]models.Track, error) {
	var tracks []models.Track
	err := r.db.WithContext(ctx).
		Where("last_enriched_at IS NULL").
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks needing enrichment: %w", err)
	}
	return tracks, nil
}

func (r *trackRepository) Create(ctx context.Context, track *models.Track) error {
	if err := r.db.WithContext(ctx).Create(track).Error; err != nil {
		return fmt.Errorf("failed to create track: %w", err)
	}
	return nil
}

func (r *trackRepository) Save(ctx context.Context, track *models.Track) error {
	if err := r.db.WithContext(ctx).Save(track).Error; err != nil {
		return fmt.Errorf("failed to save track %d: %w", track.ID, err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

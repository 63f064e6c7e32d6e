// Package repository holds the storage contracts the recommender depends on
// and their gorm and redis implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"cratedig/models"
)

// ErrNotFound is returned by lookups that match no row
var ErrNotFound = errors.New("record not found")

// TrackConnection is a track with the number of collections it appears in
type TrackConnection struct {
	Track           models.Track `json:"track"`
	CollectionCount int          `json:"collection_count"`
}

type TrackRepository interface {
	ByID(ctx context.Context, id uint) (*models.Track, error)
	ByExternalID(ctx context.Context, source models.Source, externalID string) (*models.Track, error)
	ByNormalized(ctx context.Context, normalizedArtist, normalizedTitle string) (*models.Track, error)
	Search(ctx context.Context, term string, limit int) ([]models.Track, error)
	MostConnected(ctx context.Context, limit int) ([]TrackConnection, error)
	NeedingEnrichment(ctx context.Context, limit int) ([]models.Track, error)
	Create(ctx context.Context, track *models.Track) error
	Save(ctx context.Context, track *models.Track) error
}

type CollectionRepository interface {
	ByID(ctx context.Context, id uint) (*models.Collection, error)
	// ByIDs returns the collections in storage order; callers reorder as needed
	ByIDs(ctx context.Context, ids []uint) ([]models.Collection, error)
	BySourceExternalID(ctx context.Context, source models.Source, externalID string) (*models.Collection, error)
	NeedingSync(ctx context.Context, syncedBefore time.Time, limit int) ([]models.Collection, error)
	ContainingTrack(ctx context.Context, trackID uint) ([]models.Collection, error)
	Create(ctx context.Context, collection *models.Collection) error
	Save(ctx context.Context, collection *models.Collection) error
	// ReplaceTracks clears every association of the collection and inserts links in one transaction
	ReplaceTracks(ctx context.Context, collectionID uint, links []models.CollectionTrack) error
	// Tracks returns the associations ordered by position with Track preloaded
	Tracks(ctx context.Context, collectionID uint) ([]models.CollectionTrack, error)
}

type SearchCacheRepository interface {
	// FindValid returns the most recent entry for the key if it was searched at or after notBefore
	FindValid(ctx context.Context, normalizedQuery string, source models.Source, searchType models.SearchType, notBefore time.Time) (*models.SearchCache, error)
	Add(ctx context.Context, entry *models.SearchCache) error
}

type QuotaRepository interface {
	GetOrCreate(ctx context.Context, date string, source models.Source, dailyLimit int) (*models.QuotaTracker, error)
	// Increment atomically adds to the counters of an existing row
	Increment(ctx context.Context, date string, source models.Source, units, searchCalls, fetchCalls int) error
	// MarkExhausted raises units used to the daily limit
	MarkExhausted(ctx context.Context, date string, source models.Source) error
	List(ctx context.Context, date string) ([]models.QuotaTracker, error)
}

type RunRepository interface {
	Create(ctx context.Context, run *models.RecommendationRun) error
	ByID(ctx context.Context, id string) (*models.RecommendationRun, error)
	Recent(ctx context.Context, limit int) ([]models.RecommendationRun, error)
}

// Repositories bundles the gorm implementations sharing one connection
type Repositories struct {
	Tracks      TrackRepository
	Collections CollectionRepository
	SearchCache SearchCacheRepository
	Quota       QuotaRepository
	Runs        RunRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Tracks:      NewTrackRepository(db),
		Collections: NewCollectionRepository(db),
		SearchCache: NewSearchCacheRepository(db),
		Quota:       NewQuotaRepository(db),
		Runs:        NewRunRepository(db),
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

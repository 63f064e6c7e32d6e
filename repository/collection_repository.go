package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cratedig/models"
)

type collectionRepository struct {
	db *gorm.DB
}

func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) ByID(ctx context.Context, id uint) (*models.Collection, error) {
	var collection models.Collection
	if err := r.db.WithContext(ctx).First(&collection, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &collection, nil
}

func (r *collectionRepository) ByIDs(ctx context.Context, ids []uint) ([]models.Collection, error) {
	if len(ids) == 0 {
		return []models.Collection{}, nil
	}
	var collections []models.Collection
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&collections).Error; err != nil {
		return nil, fmt.Errorf("failed to load collections: %w", err)
	}
	return collections, nil
}

func (r *collectionRepository) BySourceExternalID(ctx context.Context, source models.Source, externalID string) (*models.Collection, error) {
	var collection models.Collection
	err := r.db.WithContext(ctx).
		Where("source = ? AND external_id = ?", source, externalID).
		First(&collection).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &collection, nil
}

func (r *collectionRepository) NeedingSync(ctx context.Context, syncedBefore time.Time, limit int) ([]models.Collection, error) {
	var collections []models.Collection
	err := r.db.WithContext(ctx).
		Where("sync_complete = ? OR last_synced_at IS NULL OR last_synced_at < ?", false, syncedBefore).
		Order("last_synced_at ASC, id ASC").
		Limit(limit).
		Find(&collections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list collections needing sync: %w", err)
	}
	return collections, nil
}

func (r *collectionRepository) ContainingTrack(ctx context.Context, trackID uint) ([]models.Collection, error) {
	var collections []models.Collection
	err := r.db.WithContext(ctx).
		Joins("JOIN collection_tracks ON collection_tracks.collection_id = collections.id").
		Where("collection_tracks.track_id = ?", trackID).
		Order("collections.id ASC").
		Find(&collections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list collections containing track %d: %w", trackID, err)
	}
	return collections, nil
}

func (r *collectionRepository) Create(ctx context.Context, collection *models.Collection) error {
	if err := r.db.WithContext(ctx).Create(collection).Error; err != nil {
		return fmt.Errorf("failed to create collection %s/%s: %w", collection.Source, collection.ExternalID, err)
	}
	return nil
}

func (r *collectionRepository) Save(ctx context.Context, collection *models.Collection) error {
	if err := r.db.WithContext(ctx).Save(collection).Error; err != nil {
		return fmt.Errorf("failed to save collection %d: %w", collection.ID, err)
	}
	return nil
}

func (r *collectionRepository) ReplaceTracks(ctx context.Context, collectionID uint, links []models.CollectionTrack) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", collectionID).Delete(&models.CollectionTrack{}).Error; err != nil {
			return fmt.Errorf("failed to clear tracks of collection %d: %w", collectionID, err)
		}
		if len(links) == 0 {
			return nil
		}
		for i := range links {
			links[i].CollectionID = collectionID
			links[i].Track = nil
		}
		if err := tx.CreateInBatches(links, 200).Error; err != nil {
			return fmt.Errorf("failed to insert tracks of collection %d: %w", collectionID, err)
		}
		return nil
	})
}

func (r *collectionRepository) Tracks(ctx context.Context, collectionID uint) ([]models.CollectionTrack, error) {
	var links []models.CollectionTrack
	err := r.db.WithContext(ctx).
		Preload("Track").
		Where("collection_id = ?", collectionID).
		Order("position ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks of collection %d: %w", collectionID, err)
	}
	return links, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cratedig/models"
)

type searchCacheRepository struct {
	db *gorm.DB
}

func NewSearchCacheRepository(db *gorm.DB) SearchCacheRepository {
	return &searchCacheRepository{db: db}
}

// FindValid only ever considers the latest entry for a key. An older entry is
// never returned even when it is still inside the window.
func (r *searchCacheRepository) FindValid(ctx context.Context, normalizedQuery string, source models.Source, searchType models.SearchType, notBefore time.Time) (*models.SearchCache, error) {
	var entry models.SearchCache
	err := r.db.WithContext(ctx).
		Where("normalized_query = ? AND source = ? AND search_type = ?", normalizedQuery, source, searchType).
		Order("searched_at DESC, id DESC").
		First(&entry).Error
	if err != nil {
		return nil, notFound(err)
	}
	if entry.SearchedAt.Before(notBefore) {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (r *searchCacheRepository) Add(ctx context.Context, entry *models.SearchCache) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to add search cache entry for %q: %w", entry.NormalizedQuery, err)
	}
	return nil
}

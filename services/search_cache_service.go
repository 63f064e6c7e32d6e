package services

import (
	"context"
	"errors"
	"time"

	"cratedig/models"
	"cratedig/normalize"
	"cratedig/repository"
)

type SearchCacheService struct {
	repo repository.SearchCacheRepository
	now  func() time.Time
}

func NewSearchCacheService(repo repository.SearchCacheRepository) *SearchCacheService {
	return &SearchCacheService{repo: repo, now: time.Now}
}

// NormalizeQuery is the cache key form of a text query
func NormalizeQuery(query string) string {
	return normalize.Query(query)
}

// FindValid returns the latest entry for the key when it is no older than maxAge, nil otherwise.
// An entry with no collections is still returned; callers decide whether to trust it.
func (s *SearchCacheService) FindValid(ctx context.Context, normalizedQuery string, source models.Source, searchType models.SearchType, maxAge time.Duration) (*models.SearchCache, error) {
	entry, err := s.repo.FindValid(ctx, normalizedQuery, source, searchType, s.now().Add(-maxAge))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *SearchCacheService) Add(ctx context.Context, entry *models.SearchCache) error {
	if entry.NormalizedQuery == "" {
		entry.NormalizedQuery = NormalizeQuery(entry.Query)
	}
	if entry.SearchedAt.IsZero() {
		entry.SearchedAt = s.now()
	}
	entry.ResultCount = len(entry.CollectionIDs)
	return s.repo.Add(ctx, entry)
}

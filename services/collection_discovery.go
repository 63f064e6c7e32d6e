package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cratedig/config"
	"cratedig/logger"
	"cratedig/models"
	"cratedig/provider"
	"cratedig/repository"
)

// trackSeedKeyPrefix marks cache keys of track-id seeds
const trackSeedKeyPrefix = "track:"

type DiscoveryRequest struct {
	// Query is a free-text seed; TrackID a platform track id. Exactly one is set.
	Query          string
	TrackID        string
	MaxCollections int
	// ExcludedTitles are appended as exclusions to a fresh search. They never change the cache key.
	ExcludedTitles []string
}

type DiscoveryResult struct {
	Collections []models.Collection
	// SeedText is the text the seed stands for: the query, or the resolved search text of a track seed
	SeedText  string
	FromCache bool
}

// CollectionDiscovery turns a seed into candidate collections, preferring the search cache
type CollectionDiscovery struct {
	provider    provider.CollectionProvider
	collections repository.CollectionRepository
	cache       *SearchCacheService
	quota       *QuotaService
	cfg         config.Recommender
	now         func() time.Time
}

func NewCollectionDiscovery(p provider.CollectionProvider, collections repository.CollectionRepository, cache *SearchCacheService, quota *QuotaService, cfg config.Recommender) *CollectionDiscovery {
	return &CollectionDiscovery{
		provider:    p,
		collections: collections,
		cache:       cache,
		quota:       quota,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (d *CollectionDiscovery) cacheKey(req DiscoveryRequest) (string, models.SearchType) {
	if req.TrackID != "" {
		return trackSeedKeyPrefix + strings.TrimSpace(req.TrackID), models.SearchTypeTrack
	}
	return NormalizeQuery(req.Query), models.SearchTypePlaylist
}

func (d *CollectionDiscovery) Discover(ctx context.Context, req DiscoveryRequest, stats *Stats) (*DiscoveryResult, error) {
	source := d.provider.Source()
	key, searchType := d.cacheKey(req)
	result := &DiscoveryResult{Collections: []models.Collection{}}
	if req.TrackID == "" {
		result.SeedText = strings.TrimSpace(req.Query)
	}

	entry, err := d.cache.FindValid(ctx, key, source, searchType, d.cfg.SearchCacheMaxAge)
	if err != nil {
		return nil, fmt.Errorf("search cache lookup %q: %w", key, err)
	}
	if entry != nil && len(entry.CollectionIDs) > 0 {
		stats.SearchCacheHits++
		collections, err := d.loadInCacheOrder(ctx, entry.CollectionIDs, req.MaxCollections)
		if err != nil {
			return nil, err
		}
		result.Collections = collections
		result.FromCache = true
		if req.TrackID != "" {
			result.SeedText = entry.Query
		}
		logger.Debug("Search cache hit",
			logger.String("key", key),
			logger.Int("collections", len(collections)))
		return result, nil
	}

	ok, err := d.quota.CanUse(ctx, source, d.cfg.SearchUnitCost)
	if err != nil {
		return nil, err
	}
	if !ok {
		stats.QuotaBlockedSearches++
		logger.Info("Search skipped, daily quota spent",
			logger.String("source", string(source)),
			logger.String("key", key))
		return result, nil
	}

	var found *provider.SearchResult
	if req.TrackID != "" {
		found, err = d.provider.SearchPlaylistsByTrackID(ctx, req.TrackID, req.MaxCollections, req.ExcludedTitles)
	} else {
		found, err = d.provider.SearchPlaylists(ctx, req.Query, req.MaxCollections, req.ExcludedTitles)
	}
	if found != nil {
		if accErr := d.account(ctx, source, found, stats); accErr != nil {
			return nil, accErr
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrQuotaExceeded):
			stats.QuotaBlockedSearches++
			if markErr := d.quota.MarkExhausted(ctx, source); markErr != nil {
				return nil, markErr
			}
			return result, nil
		case errors.Is(err, provider.ErrNotFound):
			logger.Info("Seed not found on provider", logger.String("key", key))
			return result, nil
		}
		return nil, fmt.Errorf("search %q: %w", key, err)
	}

	if req.TrackID != "" {
		result.SeedText = found.Query
	}

	// the search is paid for; keep its collections and cache row even if the caller goes away
	store := context.WithoutCancel(ctx)
	ids := make([]uint, 0, len(found.Collections))
	seen := make(map[string]bool, len(found.Collections))
	for _, summary := range found.Collections {
		if seen[summary.ExternalID] {
			continue
		}
		if req.MaxCollections > 0 && len(ids) >= req.MaxCollections {
			break
		}
		seen[summary.ExternalID] = true

		collection, err := d.findOrCreate(store, source, summary)
		if err != nil {
			return nil, err
		}
		result.Collections = append(result.Collections, *collection)
		ids = append(ids, collection.ID)
	}

	// a track seed stores its resolved search text so cache hits can still match seed tracks
	cacheQuery := req.Query
	if req.TrackID != "" {
		cacheQuery = found.Query
	}
	if err := d.cache.Add(store, &models.SearchCache{
		Query:           cacheQuery,
		NormalizedQuery: key,
		Source:          source,
		SearchType:      searchType,
		SearchedAt:      d.now(),
		QuotaUsed:       found.UnitsUsed,
		CollectionIDs:   ids,
	}); err != nil {
		return nil, err
	}

	logger.Info("Discovered collections",
		logger.String("key", key),
		logger.Int("collections", len(ids)),
		logger.Int("units", found.UnitsUsed))

	return result, nil
}

func (d *CollectionDiscovery) account(ctx context.Context, source models.Source, found *provider.SearchResult, stats *Stats) error {
	stats.SearchCalls += found.Calls
	stats.QuotaUnitsUsed += found.UnitsUsed
	return d.quota.Increment(ctx, source, found.UnitsUsed, found.Calls, 0)
}

// findOrCreate reuses a known collection, refreshing its display metadata, or stores a new unsynced one
func (d *CollectionDiscovery) findOrCreate(ctx context.Context, source models.Source, summary provider.CollectionSummary) (*models.Collection, error) {
	existing, err := d.collections.BySourceExternalID(ctx, source, summary.ExternalID)
	if err == nil {
		if summary.Title != "" && (existing.Title != summary.Title || existing.OwnerName != summary.OwnerName) {
			existing.Title = summary.Title
			existing.OwnerName = summary.OwnerName
			if summary.ThumbnailURL != "" {
				existing.ThumbnailURL = summary.ThumbnailURL
			}
			if err := d.collections.Save(ctx, existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup collection %s/%s: %w", source, summary.ExternalID, err)
	}

	collectionType := summary.Type
	if !collectionType.Valid() {
		collectionType = models.CollectionTypePlaylist
	}
	collection := &models.Collection{
		Source:             source,
		Type:               collectionType,
		ExternalID:         summary.ExternalID,
		Title:              summary.Title,
		OwnerName:          summary.OwnerName,
		ThumbnailURL:       summary.ThumbnailURL,
		ReportedTrackCount: summary.ReportedTrackCount,
	}
	if err := d.collections.Create(ctx, collection); err != nil {
		return nil, err
	}
	return collection, nil
}

// loadInCacheOrder returns up to limit collections in the order of ids. Ids whose
// collection has since been removed are skipped.
func (d *CollectionDiscovery) loadInCacheOrder(ctx context.Context, ids []uint, limit int) ([]models.Collection, error) {
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	loaded, err := d.collections.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Collection, len(loaded))
	for _, c := range loaded {
		byID[c.ID] = c
	}

	ordered := make([]models.Collection, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

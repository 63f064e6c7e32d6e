package services

import (
	"context"
	"fmt"
	"time"

	"cratedig/config"
	"cratedig/logger"
	"cratedig/repository"
)

type ResyncResult struct {
	Attempted int   `json:"attempted"`
	Synced    int   `json:"synced"`
	Stats     Stats `json:"stats"`
}

// ResyncService refreshes stale collections outside of a recommendation run
type ResyncService struct {
	collections repository.CollectionRepository
	sync        *CollectionSync
	cfg         config.Recommender
	now         func() time.Time
}

func NewResyncService(collections repository.CollectionRepository, sync *CollectionSync, cfg config.Recommender) *ResyncService {
	return &ResyncService{
		collections: collections,
		sync:        sync,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Run syncs up to limit stale collections one at a time. It stops early once a
// sync is blocked by quota, since every later one would be blocked too.
func (s *ResyncService) Run(ctx context.Context, limit int) (*ResyncResult, error) {
	stale, err := s.collections.NeedingSync(ctx, s.now().Add(-s.cfg.CollectionSyncMaxAge), catalogLimit(limit))
	if err != nil {
		return nil, err
	}

	result := &ResyncResult{}
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("resync cancelled: %w", err)
		}
		collection := &stale[i]
		result.Attempted++

		blockedBefore := result.Stats.QuotaBlockedSyncs
		synced, err := s.sync.Sync(ctx, collection, s.cfg.CollectionSyncMaxAge, &result.Stats)
		if err != nil {
			return result, fmt.Errorf("resync collection %d: %w", collection.ID, err)
		}
		if synced {
			result.Synced++
		}
		if result.Stats.QuotaBlockedSyncs > blockedBefore {
			logger.Warn("Resync stopped, daily quota spent",
				logger.Int("attempted", result.Attempted),
				logger.Int("remaining", len(stale)-result.Attempted))
			break
		}
	}

	logger.Info("Resync finished",
		logger.Int("attempted", result.Attempted),
		logger.Int("synced", result.Synced),
		logger.Int("units_used", result.Stats.QuotaUnitsUsed))
	return result, nil
}

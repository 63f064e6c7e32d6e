package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cratedig/config"
	"cratedig/logger"
	"cratedig/models"
	"cratedig/provider"
	"cratedig/repository"
)

// CollectionSync keeps a collection's track list fresh
type CollectionSync struct {
	provider    provider.CollectionProvider
	collections repository.CollectionRepository
	resolver    *TrackResolver
	quota       *QuotaService
	cfg         config.Recommender
	now         func() time.Time
}

func NewCollectionSync(p provider.CollectionProvider, collections repository.CollectionRepository, resolver *TrackResolver, quota *QuotaService, cfg config.Recommender) *CollectionSync {
	return &CollectionSync{
		provider:    p,
		collections: collections,
		resolver:    resolver,
		quota:       quota,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Sync refetches the collection unless it is fresh or quota is spent, in which
// case it is left unchanged. Reports whether a fetch replaced the track list.
func (s *CollectionSync) Sync(ctx context.Context, collection *models.Collection, staleness time.Duration, stats *Stats) (bool, error) {
	now := s.now()
	if collection.IsFresh(now, staleness) {
		stats.CollectionCacheHits++
		return false, nil
	}

	source := s.provider.Source()
	if collection.Source != source {
		return false, fmt.Errorf("collection %d is from %s, provider serves %s", collection.ID, collection.Source, source)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ok, err := s.quota.CanUse(ctx, source, s.cfg.FetchUnitCost)
	if err != nil {
		return false, err
	}
	if !ok {
		stats.QuotaBlockedSyncs++
		logger.Info("Sync skipped, daily quota spent",
			logger.Uint("collection_id", collection.ID),
			logger.String("source", string(source)))
		return false, nil
	}

	fetched, err := s.provider.GetCollectionTracks(ctx, collection.ExternalID)
	if fetched != nil {
		stats.FetchCalls += fetched.Calls
		stats.QuotaUnitsUsed += fetched.UnitsUsed
		if incErr := s.quota.Increment(ctx, source, fetched.UnitsUsed, 0, fetched.Calls); incErr != nil {
			return false, incErr
		}
	}
	if err != nil {
		if errors.Is(err, provider.ErrQuotaExceeded) {
			stats.QuotaBlockedSyncs++
			if markErr := s.quota.MarkExhausted(ctx, source); markErr != nil {
				return false, markErr
			}
			return false, nil
		}
		return false, fmt.Errorf("fetch collection %s: %w", collection.ExternalID, err)
	}

	// the listing is paid for; store it even if the caller goes away
	store := context.WithoutCancel(ctx)

	links := make([]models.CollectionTrack, 0, len(fetched.Entries))
	seenExternal := make(map[string]bool, len(fetched.Entries))
	seenTracks := make(map[uint]bool, len(fetched.Entries))
	skipped := 0

	for _, entry := range fetched.Entries {
		if entry.Unavailable {
			skipped++
			continue
		}
		if entry.ExternalID != "" {
			if seenExternal[entry.ExternalID] {
				continue
			}
			seenExternal[entry.ExternalID] = true
		}

		track, err := s.resolver.Resolve(store, source, RawTrack{
			ExternalID:      entry.ExternalID,
			RawTitle:        entry.RawTitle,
			ChannelName:     entry.OwnerName,
			DurationSeconds: entry.DurationSeconds,
		})
		if err != nil {
			return false, err
		}
		// two ids can resolve to one catalog track
		if seenTracks[track.ID] {
			continue
		}
		seenTracks[track.ID] = true

		links = append(links, models.CollectionTrack{
			CollectionID: collection.ID,
			TrackID:      track.ID,
			Position:     len(links),
			DiscoveredAt: now,
		})
	}

	if err := s.collections.ReplaceTracks(store, collection.ID, links); err != nil {
		return false, err
	}

	collection.LastSyncedAt = &now
	collection.SyncComplete = true
	collection.ReportedTrackCount = len(fetched.Entries)
	if err := s.collections.Save(store, collection); err != nil {
		return false, err
	}

	stats.CollectionsSynced++
	logger.Info("Synced collection",
		logger.Uint("collection_id", collection.ID),
		logger.String("external_id", collection.ExternalID),
		logger.Int("fetched", len(fetched.Entries)),
		logger.Int("linked", len(links)),
		logger.Int("unavailable", skipped))

	return true, nil
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cratedig/models"
	"cratedig/provider"
)

func TestDiscover_FreshSearchPersistsCollectionsAndCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provider.addPlaylist("french house", "PL1", "Filter House")
	env.provider.addPlaylist("french house", "PL2", "Paris 1998")
	env.provider.addPlaylist("french house", "PL1", "Filter House duplicate")

	var stats Stats
	result, err := env.discovery.Discover(ctx, DiscoveryRequest{Query: "  French House ", MaxCollections: 5}, &stats)
	require.NoError(t, err)

	require.Len(t, result.Collections, 2)
	assert.Equal(t, "PL1", result.Collections[0].ExternalID)
	assert.Equal(t, "PL2", result.Collections[1].ExternalID)
	assert.False(t, result.FromCache)
	assert.Equal(t, "French House", result.SeedText)
	assert.Equal(t, Stats{SearchCalls: 1, QuotaUnitsUsed: 100}, stats)
	assert.Equal(t, 100, env.unitsUsedToday(t))

	entry, err := env.cache.FindValid(ctx, "french house", models.SourceYouTube, models.SearchTypePlaylist, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []uint{result.Collections[0].ID, result.Collections[1].ID}, []uint(entry.CollectionIDs))
	assert.Equal(t, 100, entry.QuotaUsed)
}

func TestDiscover_CacheHitKeepsCachedOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.createCollection(t, "PLA", "A")
	second := env.createCollection(t, "PLB", "B")
	third := env.createCollection(t, "PLC", "C")

	require.NoError(t, env.cache.Add(ctx, &models.SearchCache{
		Query:         "deep cuts",
		Source:        models.SourceYouTube,
		SearchType:    models.SearchTypePlaylist,
		CollectionIDs: []uint{third.ID, first.ID, second.ID},
	}))

	var stats Stats
	result, err := env.discovery.Discover(ctx, DiscoveryRequest{Query: "Deep Cuts", MaxCollections: 2}, &stats)
	require.NoError(t, err)

	assert.True(t, result.FromCache)
	require.Len(t, result.Collections, 2)
	assert.Equal(t, third.ID, result.Collections[0].ID)
	assert.Equal(t, first.ID, result.Collections[1].ID)
	assert.Equal(t, 1, stats.SearchCacheHits)
	assert.Zero(t, env.provider.searchCalls)
}

func TestDiscover_EmptyCacheEntryStillSearches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.cache.Add(ctx, &models.SearchCache{
		Query:      "rare groove",
		Source:     models.SourceYouTube,
		SearchType: models.SearchTypePlaylist,
	}))
	env.provider.addPlaylist("rare groove", "PLRG", "Rare Groove")

	var stats Stats
	result, err := env.discovery.Discover(ctx, DiscoveryRequest{Query: "rare groove", MaxCollections: 5}, &stats)
	require.NoError(t, err)

	assert.Equal(t, 1, env.provider.searchCalls)
	assert.Zero(t, stats.SearchCacheHits)
	require.Len(t, result.Collections, 1)
	assert.Equal(t, "PLRG", result.Collections[0].ExternalID)
}

func TestDiscover_QuotaBlockedSkipsProvider(t *testing.T) {
	env := newTestEnv(t)
	env.setLimit(t, 99)
	env.provider.addPlaylist("ambient", "PLAMB", "Ambient")

	var stats Stats
	result, err := env.discovery.Discover(context.Background(), DiscoveryRequest{Query: "ambient", MaxCollections: 5}, &stats)
	require.NoError(t, err)

	assert.Empty(t, result.Collections)
	assert.Zero(t, env.provider.searchCalls)
	assert.Equal(t, 1, stats.QuotaBlockedSearches)
	assert.Zero(t, stats.QuotaUnitsUsed)
	assert.Zero(t, env.unitsUsedToday(t))
}

func TestDiscover_ProviderQuotaExceededMarksExhausted(t *testing.T) {
	env := newTestEnv(t)
	env.provider.searchErr = provider.ErrQuotaExceeded

	var stats Stats
	result, err := env.discovery.Discover(context.Background(), DiscoveryRequest{Query: "techno", MaxCollections: 5}, &stats)
	require.NoError(t, err)
	assert.Empty(t, result.Collections)
	assert.Equal(t, 1, stats.QuotaBlockedSearches)

	ok, err := env.quota.CanUse(context.Background(), models.SourceYouTube, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiscover_ProviderFailureIsHardError(t *testing.T) {
	env := newTestEnv(t)
	boom := errors.New("connection reset")
	env.provider.searchErr = boom

	_, err := env.discovery.Discover(context.Background(), DiscoveryRequest{Query: "techno", MaxCollections: 5}, &Stats{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestDiscover_ReusesKnownCollection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	existing := env.createCollection(t, "PLX", "Old Title")
	env.provider.addPlaylist("disco", "PLX", "New Title")

	result, err := env.discovery.Discover(ctx, DiscoveryRequest{Query: "disco", MaxCollections: 5}, &Stats{})
	require.NoError(t, err)
	require.Len(t, result.Collections, 1)
	assert.Equal(t, existing.ID, result.Collections[0].ID)

	stored, err := env.repos.Collections.ByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Title", stored.Title)
	assert.Equal(t, "curator", stored.OwnerName)
}

func TestDiscover_TrackSeedCachesResolvedQuery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provider.videos["vidSEED0001"] = provider.SeedTrack{ExternalID: "vidSEED0001", Artist: "Daft Punk", Title: "One More Time"}
	env.provider.addPlaylist("daft punk one more time", "PLDP", "Daft Punk Essentials")

	var stats Stats
	fresh, err := env.discovery.Discover(ctx, DiscoveryRequest{TrackID: "vidSEED0001", MaxCollections: 5}, &stats)
	require.NoError(t, err)
	assert.Equal(t, "daft punk one more time", fresh.SeedText)
	require.Len(t, fresh.Collections, 1)

	cached, err := env.discovery.Discover(ctx, DiscoveryRequest{TrackID: "vidSEED0001", MaxCollections: 5}, &stats)
	require.NoError(t, err)
	assert.True(t, cached.FromCache)
	assert.Equal(t, "daft punk one more time", cached.SeedText)
	assert.Equal(t, 1, env.provider.searchCalls)
	assert.Equal(t, 1, stats.SearchCacheHits)

	entry, err := env.cache.FindValid(ctx, "track:vidSEED0001", models.SourceYouTube, models.SearchTypeTrack, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, entry)
}

func TestDiscover_UnknownTrackSeed(t *testing.T) {
	env := newTestEnv(t)

	var stats Stats
	result, err := env.discovery.Discover(context.Background(), DiscoveryRequest{TrackID: "nope", MaxCollections: 5}, &stats)
	require.NoError(t, err)
	assert.Empty(t, result.Collections)
	assert.Equal(t, 1, stats.QuotaUnitsUsed)
}

func TestDiscover_CancelAfterPaidSearchKeepsSpend(t *testing.T) {
	env := newTestEnv(t)
	env.provider.addPlaylist("anything", "PL1", "Paid For")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.provider.afterSearch = func(string) { cancel() }

	var stats Stats
	result, err := env.discovery.Discover(ctx, DiscoveryRequest{Query: "anything", MaxCollections: 5}, &stats)
	require.NoError(t, err)
	require.Len(t, result.Collections, 1)

	assert.Equal(t, Stats{SearchCalls: 1, QuotaUnitsUsed: 100}, stats)
	assert.Equal(t, 100, env.unitsUsedToday(t))

	entry, err := env.cache.FindValid(context.Background(), "anything", models.SourceYouTube, models.SearchTypePlaylist, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []uint{result.Collections[0].ID}, []uint(entry.CollectionIDs))
}

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

func linkedTitles(t *testing.T, env *testEnv, collectionID uint) []string {
	t.Helper()
	links, err := env.repos.Collections.Tracks(context.Background(), collectionID)
	require.NoError(t, err)
	titles := make([]string, 0, len(links))
	for i, link := range links {
		assert.Equal(t, i, link.Position)
		require.NotNil(t, link.Track)
		titles = append(titles, link.Track.Title)
	}
	return titles
}

func TestSync_SkipsUnavailableAndDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	collection := env.createCollection(t, "PL1", "Mixed Bag")

	deleted := entry("", "Deleted video")
	deleted.Unavailable = true
	private := entry("vidPRIV", "Private video")
	private.Unavailable = true
	env.provider.playlists["PL1"] = []provider.CollectionEntry{
		entry("vid1", "Cassius - 1999"),
		deleted,
		entry("vid2", "Stardust - Music Sounds Better With You"),
		entry("vid1", "Cassius - 1999"),
		private,
		entry("vid3", "CASSIUS - 1999 (Official Video)"),
	}

	var stats Stats
	synced, err := env.sync.Sync(ctx, collection, 24*time.Hour, &stats)
	require.NoError(t, err)
	assert.True(t, synced)

	assert.Equal(t, []string{"1999", "Music Sounds Better With You"}, linkedTitles(t, env, collection.ID))
	assert.Equal(t, Stats{FetchCalls: 1, QuotaUnitsUsed: 1, CollectionsSynced: 1}, stats)

	stored, err := env.repos.Collections.ByID(ctx, collection.ID)
	require.NoError(t, err)
	assert.True(t, stored.SyncComplete)
	require.NotNil(t, stored.LastSyncedAt)
	assert.Equal(t, 6, stored.ReportedTrackCount)

	_, err = env.repos.Tracks.ByExternalID(ctx, models.SourceYouTube, "vidPRIV")
	assert.Error(t, err)
}

func TestSync_FreshCollectionIsCacheHit(t *testing.T) {
	env := newTestEnv(t)
	collection := env.createCollection(t, "PL1", "Fresh")
	env.provider.playlists["PL1"] = []provider.CollectionEntry{entry("vid1", "Cassius - 1999")}

	var stats Stats
	_, err := env.sync.Sync(context.Background(), collection, 24*time.Hour, &stats)
	require.NoError(t, err)

	synced, err := env.sync.Sync(context.Background(), collection, 24*time.Hour, &stats)
	require.NoError(t, err)
	assert.False(t, synced)
	assert.Equal(t, 1, env.provider.fetchCalls)
	assert.Equal(t, 1, stats.CollectionCacheHits)
}

func TestSync_StaleCollectionIsRebuilt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	collection := env.createCollection(t, "PL1", "Rotating")
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	env.provider.playlists["PL1"] = []provider.CollectionEntry{
		entry("vid1", "Cassius - 1999"),
		entry("vid2", "Stardust - Music Sounds Better With You"),
	}
	env.sync.now = fixedClock(start)
	_, err := env.sync.Sync(ctx, collection, 24*time.Hour, &Stats{})
	require.NoError(t, err)

	env.provider.playlists["PL1"] = []provider.CollectionEntry{
		entry("vid3", "Modjo - Lady"),
		entry("vid1", "Cassius - 1999"),
	}
	env.sync.now = fixedClock(start.Add(48 * time.Hour))
	synced, err := env.sync.Sync(ctx, collection, 24*time.Hour, &Stats{})
	require.NoError(t, err)
	assert.True(t, synced)

	assert.Equal(t, []string{"Lady", "1999"}, linkedTitles(t, env, collection.ID))
}

func TestSync_QuotaBlocked(t *testing.T) {
	env := newTestEnv(t)
	collection := env.createCollection(t, "PL1", "Blocked")
	require.NoError(t, env.quota.MarkExhausted(context.Background(), models.SourceYouTube))
	before := env.unitsUsedToday(t)

	var stats Stats
	synced, err := env.sync.Sync(context.Background(), collection, 24*time.Hour, &stats)
	require.NoError(t, err)
	assert.False(t, synced)
	assert.Zero(t, env.provider.fetchCalls)
	assert.Equal(t, 1, stats.QuotaBlockedSyncs)
	assert.Equal(t, before, env.unitsUsedToday(t))
	assert.False(t, collection.SyncComplete)
}

func TestSync_ProviderErrors(t *testing.T) {
	t.Run("quota exceeded is not an error", func(t *testing.T) {
		env := newTestEnv(t)
		collection := env.createCollection(t, "PL1", "Any")
		env.provider.fetchErr = provider.ErrQuotaExceeded

		var stats Stats
		_, err := env.sync.Sync(context.Background(), collection, 24*time.Hour, &stats)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.QuotaBlockedSyncs)
	})

	t.Run("other failures surface", func(t *testing.T) {
		env := newTestEnv(t)
		collection := env.createCollection(t, "PL1", "Any")
		boom := errors.New("bad gateway")
		env.provider.fetchErr = boom

		_, err := env.sync.Sync(context.Background(), collection, 24*time.Hour, &Stats{})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("foreign source is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		collection := &models.Collection{Source: models.SourceDiscogs, Type: models.CollectionTypeSellerInventory, ExternalID: "seller"}
		require.NoError(t, env.repos.Collections.Create(context.Background(), collection))

		_, err := env.sync.Sync(context.Background(), collection, 24*time.Hour, &Stats{})
		assert.Error(t, err)
		assert.Zero(t, env.provider.fetchCalls)
	})
}

func TestResync_StopsWhenQuotaRunsOut(t *testing.T) {
	env := newTestEnv(t)
	env.setLimit(t, 1)
	for _, id := range []string{"PL1", "PL2", "PL3"} {
		env.createCollection(t, id, id)
		env.provider.playlists[id] = []provider.CollectionEntry{entry("vid"+id, "Artist - "+id)}
	}

	result, err := env.resync.Run(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, result.Stats.QuotaBlockedSyncs)
	assert.Equal(t, 1, env.provider.fetchCalls)

	pending, err := env.catalog.CollectionsNeedingSync(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestSync_CancelAfterPaidFetchKeepsListing(t *testing.T) {
	env := newTestEnv(t)
	collection := env.createCollection(t, "PL1", "Paid For")
	env.provider.playlists["PL1"] = []provider.CollectionEntry{entry("vid1", "Cassius - 1999")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.provider.afterFetch = func(string) { cancel() }

	var stats Stats
	synced, err := env.sync.Sync(ctx, collection, 24*time.Hour, &stats)
	require.NoError(t, err)
	assert.True(t, synced)

	assert.Equal(t, 1, stats.QuotaUnitsUsed)
	assert.Equal(t, 1, env.unitsUsedToday(t))
	assert.Equal(t, []string{"1999"}, linkedTitles(t, env, collection.ID))

	stored, err := env.repos.Collections.ByID(context.Background(), collection.ID)
	require.NoError(t, err)
	assert.True(t, stored.SyncComplete)
}

func TestSync_CancelledBeforeFetch(t *testing.T) {
	env := newTestEnv(t)
	collection := env.createCollection(t, "PL1", "Never Fetched")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stats Stats
	synced, err := env.sync.Sync(ctx, collection, 24*time.Hour, &stats)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, synced)
	assert.Zero(t, env.provider.fetchCalls)
	assert.Zero(t, env.unitsUsedToday(t))
}

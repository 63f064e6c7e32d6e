package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cratedig/models"
	"cratedig/provider"
)

func frequencies(recs []ScoredTrack) map[string]int {
	out := make(map[string]int, len(recs))
	for _, r := range recs {
		out[r.Track.Title] = r.Frequency
	}
	return out
}

func TestRecommend_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.provider.addPlaylist("daft punk one more time", "P1", "Playlist One",
		entry("vidSEED", "Daft Punk - One More Time"),
		entry("vidX", "Cassius - 1999"),
	)
	env.provider.addPlaylist("daft punk one more time", "P2", "Playlist Two",
		entry("vidX", "Cassius - 1999"),
		entry("vidY", "Stardust - Music Sounds Better With You"),
	)

	result, err := env.recommender.Recommend(ctx, RecommendationRequest{
		Seeds:              []Seed{{Query: "daft punk one more time"}},
		CollectionsPerSeed: 2,
		ResultsToReturn:    10,
	})
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 2)
	x, y := result.Recommendations[0], result.Recommendations[1]
	assert.Equal(t, "1999", x.Track.Title)
	assert.Equal(t, 2, x.Frequency)
	assert.Equal(t, []string{"Playlist One", "Playlist Two"}, x.FoundInCollections)
	assert.Equal(t, "Music Sounds Better With You", y.Track.Title)
	assert.Equal(t, 1, y.Frequency)
	assert.Equal(t, []string{"Playlist Two"}, y.FoundInCollections)

	assert.Equal(t, 2, result.TotalTracksFound)
	assert.Equal(t, 2, result.CollectionsProcessed)
	assert.Equal(t, Stats{
		SearchCalls:       1,
		FetchCalls:        2,
		QuotaUnitsUsed:    102,
		CollectionsSynced: 2,
	}, result.Stats)

	run, err := env.catalog.Run(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, []string{"daft punk one more time"}, []string(run.Seeds))
	assert.Equal(t, 102, run.QuotaUnitsUsed)
	assert.Equal(t, 2, run.CollectionsSynced)

	again, err := env.recommender.Recommend(ctx, RecommendationRequest{
		Seeds:              []Seed{{Query: "Daft Punk One More Time"}},
		CollectionsPerSeed: 2,
		ResultsToReturn:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, frequencies(result.Recommendations), frequencies(again.Recommendations))
	assert.Equal(t, Stats{SearchCacheHits: 1, CollectionCacheHits: 2}, again.Stats)
	assert.NotEqual(t, result.RunID, again.RunID)
}

func TestRecommend_SharedCollectionProcessedOnce(t *testing.T) {
	env := newTestEnv(t)

	for _, query := range []string{"seed one", "seed two"} {
		env.provider.addPlaylist(query, "P1", "Shared",
			entry("vidX", "Cassius - 1999"),
			entry("vidY", "Modjo - Lady"),
		)
	}
	env.provider.addPlaylist("seed two", "P2", "Only Two", entry("vidX", "Cassius - 1999"))

	result, err := env.recommender.Recommend(context.Background(), RecommendationRequest{
		Seeds:              []Seed{{Query: "seed one"}, {Query: "seed two"}},
		CollectionsPerSeed: 2,
		ResultsToReturn:    10,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.CollectionsProcessed)
	assert.Equal(t, 2, env.provider.fetchCalls)
	assert.Equal(t, map[string]int{"1999": 2, "Lady": 1}, frequencies(result.Recommendations))

	total := 0
	for _, r := range result.Recommendations {
		total += r.Frequency
	}
	assert.Equal(t, 3, total)
}

func TestRecommend_TrackSeedNeverRecommendedBack(t *testing.T) {
	env := newTestEnv(t)
	env.provider.videos["vidSEED0001"] = provider.SeedTrack{ExternalID: "vidSEED0001", Artist: "Daft Punk", Title: "One More Time"}
	env.provider.addPlaylist("daft punk one more time", "P1", "Club Classics",
		entry("vidSEED0001", "DP live at Alive 2007"),
		entry("vidRMX", "Daft Punk - One More Time (Radio Edit)"),
		entry("vidX", "Cassius - 1999"),
	)

	result, err := env.recommender.Recommend(context.Background(), RecommendationRequest{
		Seeds:              []Seed{{TrackID: "vidSEED0001"}},
		CollectionsPerSeed: 1,
		ResultsToReturn:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"1999": 1}, frequencies(result.Recommendations))
}

func TestRecommend_ExcludeSeenTitles(t *testing.T) {
	env := newTestEnv(t)
	env.provider.addPlaylist("first", "P1", "First Finds", entry("vidX", "Cassius - 1999"))
	env.provider.addPlaylist("second", "P2", "Second Finds", entry("vidY", "Modjo - Lady"))

	_, err := env.recommender.Recommend(context.Background(), RecommendationRequest{
		Seeds:              []Seed{{Query: "first"}, {Query: "second"}},
		CollectionsPerSeed: 1,
		ResultsToReturn:    10,
		ExcludeSeenTitles:  true,
	})
	require.NoError(t, err)

	require.Len(t, env.provider.excluded, 2)
	assert.Empty(t, env.provider.excluded[0])
	assert.Equal(t, []string{"First Finds"}, env.provider.excluded[1])
}

func TestRecommend_QuotaExhaustedStillCompletes(t *testing.T) {
	env := newTestEnv(t)
	env.setLimit(t, 50)
	env.provider.addPlaylist("anything", "P1", "Never Seen", entry("vidX", "Cassius - 1999"))

	result, err := env.recommender.Recommend(context.Background(), RecommendationRequest{
		Seeds: []Seed{{Query: "anything"}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Recommendations)
	assert.Equal(t, 1, result.Stats.QuotaBlockedSearches)
	assert.Zero(t, env.provider.searchCalls)
	assert.Zero(t, env.unitsUsedToday(t))
}

func TestRecommend_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	env.provider.addPlaylist("anything", "P1", "Never Seen", entry("vidX", "Cassius - 1999"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.recommender.Recommend(ctx, RecommendationRequest{Seeds: []Seed{{Query: "anything"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, env.provider.searchCalls)

	runs, err := env.catalog.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusCancelled, runs[0].Status)
}

func TestRecommend_CancelledBetweenSeeds(t *testing.T) {
	env := newTestEnv(t)
	env.provider.addPlaylist("seed one", "P1", "First", entry("vidX", "Cassius - 1999"))
	env.provider.addPlaylist("seed two", "P2", "Second", entry("vidY", "Modjo - Lady"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.provider.afterSearch = func(query string) {
		if query == "seed two" {
			cancel()
		}
	}

	_, err := env.recommender.Recommend(ctx, RecommendationRequest{
		Seeds:              []Seed{{Query: "seed one"}, {Query: "seed two"}},
		CollectionsPerSeed: 1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, env.provider.fetchCalls)

	bg := context.Background()
	first, err := env.repos.Collections.BySourceExternalID(bg, models.SourceYouTube, "P1")
	require.NoError(t, err)
	assert.True(t, first.SyncComplete)
	second, err := env.repos.Collections.BySourceExternalID(bg, models.SourceYouTube, "P2")
	require.NoError(t, err)
	assert.False(t, second.SyncComplete)

	for _, query := range []string{"seed one", "seed two"} {
		cached, err := env.cache.FindValid(bg, query, models.SourceYouTube, models.SearchTypePlaylist, time.Hour)
		require.NoError(t, err)
		assert.NotNil(t, cached, query)
	}

	runs, err := env.catalog.RecentRuns(bg, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusCancelled, runs[0].Status)
	assert.Equal(t, 201, runs[0].QuotaUnitsUsed)
	assert.Equal(t, runs[0].QuotaUnitsUsed, env.unitsUsedToday(t))
}

func TestRecommend_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  RecommendationRequest
	}{
		{"no seeds", RecommendationRequest{}},
		{"blank seed", RecommendationRequest{Seeds: []Seed{{Query: "  "}}}},
		{"both fields", RecommendationRequest{Seeds: []Seed{{Query: "a", TrackID: "b"}}}},
		{"negative collections", RecommendationRequest{Seeds: []Seed{{Query: "a"}}, CollectionsPerSeed: -1}},
		{"negative results", RecommendationRequest{Seeds: []Seed{{Query: "a"}}, ResultsToReturn: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.recommender.Recommend(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	req := RecommendationRequest{Seeds: []Seed{{Query: " a "}}, CollectionsPerSeed: 1000}
	require.NoError(t, env.recommender.Validate(&req))
	assert.Equal(t, "a", req.Seeds[0].Query)
	assert.Equal(t, env.cfg.MaxCollectionsPerSeed, req.CollectionsPerSeed)
	assert.Equal(t, env.cfg.DefaultResultsToReturn, req.ResultsToReturn)
}

func TestRankScores(t *testing.T) {
	scores := map[uint]*trackScore{
		1: {track: models.Track{ID: 1, Title: "B"}, count: 3, foundIn: map[string]struct{}{"p2": {}, "p1": {}}},
		2: {track: models.Track{ID: 2, Title: "A"}, count: 3, foundIn: map[string]struct{}{"p1": {}}},
		3: {track: models.Track{ID: 3, Title: "C"}, count: 1, foundIn: map[string]struct{}{"p3": {}}},
	}

	ranked := rankScores(scores, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, "A", ranked[0].Track.Title)
	assert.Equal(t, "B", ranked[1].Track.Title)
	assert.Equal(t, "C", ranked[2].Track.Title)
	assert.Equal(t, []string{"p1", "p2"}, ranked[1].FoundInCollections)

	top := rankScores(scores, 1)
	require.Len(t, top, 1)
	assert.Equal(t, "A", top[0].Track.Title)
}

func TestSeedMatcher(t *testing.T) {
	m := newSeedMatcher(models.SourceYouTube, []Seed{{Query: "Daft Punk One More Time"}, {TrackID: "vidSEED"}})

	track := func(artist, title, normArtist, normTitle, id string) *models.Track {
		tr := &models.Track{Artist: artist, Title: title, NormalizedArtist: normArtist, NormalizedTitle: normTitle}
		tr.SetExternalID(models.SourceYouTube, id)
		return tr
	}

	assert.True(t, m.matches(track("Daft Punk", "One More Time", "daft punk", "one more time", "")))
	assert.True(t, m.matches(track("Daft Punk", "Aerodynamic", "daft punk", "aerodynamic", "")))
	assert.True(t, m.matches(track("Someone", "Renamed", "someone", "renamed", "vidSEED")))
	assert.False(t, m.matches(track("Cassius", "1999", "cassius", "1999", "vidX")))
	assert.False(t, m.matches(track("Unknown", "Mystery", "unknown", "mystery", "")))
	assert.False(t, m.matches(track("", "", "", "", "")))
}

package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cratedig/config"
	"cratedig/database"
	"cratedig/models"
	"cratedig/provider"
	"cratedig/repository"
)

// fakeProvider serves canned search results and playlists and counts every call
type fakeProvider struct {
	searches    map[string][]provider.CollectionSummary
	videos      map[string]provider.SeedTrack
	playlists   map[string][]provider.CollectionEntry
	searchErr   error
	fetchErr    error
	searchCalls int
	fetchCalls  int
	queries     []string
	excluded    [][]string
	// called once the metered call has succeeded
	afterSearch func(query string)
	afterFetch  func(collectionID string)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		searches:  make(map[string][]provider.CollectionSummary),
		videos:    make(map[string]provider.SeedTrack),
		playlists: make(map[string][]provider.CollectionEntry),
	}
}

func (f *fakeProvider) Source() models.Source { return models.SourceYouTube }

func (f *fakeProvider) SearchPlaylists(ctx context.Context, query string, maxResults int, excludedTitles []string) (*provider.SearchResult, error) {
	f.searchCalls++
	f.queries = append(f.queries, query)
	f.excluded = append(f.excluded, excludedTitles)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	found := f.searches[strings.ToLower(strings.TrimSpace(query))]
	if maxResults > 0 && len(found) > maxResults {
		found = found[:maxResults]
	}
	if f.afterSearch != nil {
		f.afterSearch(query)
	}
	return &provider.SearchResult{
		Collections: found,
		Query:       query,
		UnitsUsed:   100,
		Calls:       1,
	}, nil
}

func (f *fakeProvider) SearchPlaylistsByTrackID(ctx context.Context, trackID string, maxResults int, excludedTitles []string) (*provider.SearchResult, error) {
	seed, ok := f.videos[trackID]
	if !ok {
		return &provider.SearchResult{UnitsUsed: 1, Calls: 1}, provider.ErrNotFound
	}
	result, err := f.SearchPlaylists(ctx, strings.ToLower(seed.Artist+" "+seed.Title), maxResults, excludedTitles)
	if err != nil {
		return result, err
	}
	result.Seed = &seed
	return result, nil
}

func (f *fakeProvider) GetCollectionTracks(ctx context.Context, collectionID string) (*provider.FetchResult, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.afterFetch != nil {
		f.afterFetch(collectionID)
	}
	return &provider.FetchResult{
		Entries:   f.playlists[collectionID],
		UnitsUsed: 1,
		Calls:     1,
	}, nil
}

func (f *fakeProvider) addPlaylist(query, externalID, title string, entries ...provider.CollectionEntry) {
	key := strings.ToLower(query)
	f.searches[key] = append(f.searches[key], provider.CollectionSummary{
		ExternalID:         externalID,
		Type:               models.CollectionTypePlaylist,
		Title:              title,
		OwnerName:          "curator",
		ReportedTrackCount: len(entries),
	})
	if _, ok := f.playlists[externalID]; !ok {
		f.playlists[externalID] = entries
	}
}

func entry(videoID, rawTitle string) provider.CollectionEntry {
	return provider.CollectionEntry{ExternalID: videoID, RawTitle: rawTitle, OwnerName: "uploader"}
}

type testEnv struct {
	db          *gorm.DB
	repos       *repository.Repositories
	provider    *fakeProvider
	cfg         config.Recommender
	quota       *QuotaService
	cache       *SearchCacheService
	resolver    *TrackResolver
	discovery   *CollectionDiscovery
	sync        *CollectionSync
	recommender *RecommendationService
	catalog     *CatalogService
	resync      *ResyncService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { sqlDB.Close() })

	env := &testEnv{
		db:       db,
		repos:    repository.New(db),
		provider: newFakeProvider(),
		cfg:      config.Default().Recommender,
	}
	env.wire()
	return env
}

// wire rebuilds every service from the current cfg
func (e *testEnv) wire() {
	svc := New(e.repos, e.provider, e.cfg)
	e.quota = svc.Quota
	e.cache = svc.SearchCache
	e.resolver = svc.Resolver
	e.discovery = svc.Discovery
	e.sync = svc.Sync
	e.recommender = svc.Recommendation
	e.catalog = svc.Catalog
	e.resync = svc.Resync
}

func (e *testEnv) setLimit(t *testing.T, units int) {
	t.Helper()
	e.cfg.QuotaLimits = map[models.Source]int{models.SourceYouTube: units}
	e.wire()
}

func (e *testEnv) unitsUsedToday(t *testing.T) int {
	t.Helper()
	tracker, err := e.quota.GetOrCreateToday(context.Background(), models.SourceYouTube)
	require.NoError(t, err)
	return tracker.UnitsUsed
}

func (e *testEnv) createCollection(t *testing.T, externalID, title string) *models.Collection {
	t.Helper()
	c := &models.Collection{
		Source:     models.SourceYouTube,
		Type:       models.CollectionTypePlaylist,
		ExternalID: externalID,
		Title:      title,
	}
	require.NoError(t, e.repos.Collections.Create(context.Background(), c))
	return c
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

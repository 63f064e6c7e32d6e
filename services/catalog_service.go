package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"cratedig/config"
	"cratedig/models"
	"cratedig/repository"
)

const (
	defaultCatalogLimit = 50
	maxCatalogLimit     = 500
	// searchCandidateFactor widens the LIKE prefilter before similarity ranking
	searchCandidateFactor = 4
)

// TrackMatch is a search hit with its similarity to the search term
type TrackMatch struct {
	Track models.Track `json:"track"`
	Score float64      `json:"score"`
}

// CollectionWithTracks is a collection and its ordered associations
type CollectionWithTracks struct {
	Collection models.Collection        `json:"collection"`
	Tracks     []models.CollectionTrack `json:"tracks"`
}

// CatalogService serves read-only views over the stored catalog
type CatalogService struct {
	tracks      repository.TrackRepository
	collections repository.CollectionRepository
	runs        repository.RunRepository
	cfg         config.Recommender
	now         func() time.Time
}

func NewCatalogService(tracks repository.TrackRepository, collections repository.CollectionRepository, runs repository.RunRepository, cfg config.Recommender) *CatalogService {
	return &CatalogService{
		tracks:      tracks,
		collections: collections,
		runs:        runs,
		cfg:         cfg,
		now:         time.Now,
	}
}

func catalogLimit(limit int) int {
	if limit <= 0 {
		return defaultCatalogLimit
	}
	if limit > maxCatalogLimit {
		return maxCatalogLimit
	}
	return limit
}

func (s *CatalogService) Track(ctx context.Context, id uint) (*models.Track, error) {
	return s.tracks.ByID(ctx, id)
}

// SearchTracks ranks LIKE candidates by Jaro-Winkler similarity of "artist - title" to the term
func (s *CatalogService) SearchTracks(ctx context.Context, term string, limit int) ([]TrackMatch, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []TrackMatch{}, nil
	}
	limit = catalogLimit(limit)

	candidates, err := s.tracks.Search(ctx, term, limit*searchCandidateFactor)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)
	jw := metrics.NewJaroWinkler()

	matches := make([]TrackMatch, 0, len(candidates))
	for _, t := range candidates {
		score := strutil.Similarity(needle, strings.ToLower(t.DisplayName()), jw)
		matches = append(matches, TrackMatch{Track: t, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Track.ID < matches[j].Track.ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *CatalogService) MostConnected(ctx context.Context, limit int) ([]repository.TrackConnection, error) {
	return s.tracks.MostConnected(ctx, catalogLimit(limit))
}

func (s *CatalogService) NeedingEnrichment(ctx context.Context, limit int) ([]models.Track, error) {
	return s.tracks.NeedingEnrichment(ctx, catalogLimit(limit))
}

// CollectionsNeedingSync lists collections never fully synced or older than the resync window
func (s *CatalogService) CollectionsNeedingSync(ctx context.Context, limit int) ([]models.Collection, error) {
	return s.collections.NeedingSync(ctx, s.now().Add(-s.cfg.CollectionSyncMaxAge), catalogLimit(limit))
}

func (s *CatalogService) CollectionsContainingTrack(ctx context.Context, trackID uint) ([]models.Collection, error) {
	if _, err := s.tracks.ByID(ctx, trackID); err != nil {
		return nil, err
	}
	return s.collections.ContainingTrack(ctx, trackID)
}

func (s *CatalogService) Collection(ctx context.Context, id uint) (*CollectionWithTracks, error) {
	collection, err := s.collections.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	links, err := s.collections.Tracks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CollectionWithTracks{Collection: *collection, Tracks: links}, nil
}

func (s *CatalogService) Run(ctx context.Context, id string) (*models.RecommendationRun, error) {
	return s.runs.ByID(ctx, id)
}

func (s *CatalogService) RecentRuns(ctx context.Context, limit int) ([]models.RecommendationRun, error) {
	return s.runs.Recent(ctx, catalogLimit(limit))
}

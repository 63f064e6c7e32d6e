package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"cratedig/config"
	"cratedig/logger"
	"cratedig/models"
	"cratedig/normalize"
	"cratedig/repository"
)

var ErrInvalidRequest = errors.New("invalid recommendation request")

// Seed is one recommendation input. Exactly one of Query and TrackID is set.
type Seed struct {
	Query   string `json:"query,omitempty"`
	TrackID string `json:"track_id,omitempty"`
}

func (s Seed) String() string {
	if s.TrackID != "" {
		return trackSeedKeyPrefix + s.TrackID
	}
	return s.Query
}

type RecommendationRequest struct {
	Seeds              []Seed `json:"seeds"`
	CollectionsPerSeed int    `json:"collections_per_seed"`
	ResultsToReturn    int    `json:"results_to_return"`
	// ExcludeSeenTitles asks fresh searches to leave out collections already processed in this run
	ExcludeSeenTitles bool `json:"exclude_seen_titles"`
}

type ScoredTrack struct {
	Track              models.Track `json:"track"`
	Frequency          int          `json:"frequency"`
	FoundInCollections []string     `json:"found_in_collections"`
}

type RecommendationResult struct {
	RunID                string        `json:"run_id"`
	Recommendations      []ScoredTrack `json:"recommendations"`
	TotalTracksFound     int           `json:"total_tracks_found"`
	CollectionsProcessed int           `json:"collections_processed"`
	Stats                Stats         `json:"stats"`
}

// RecommendationService drives discovery, sync and scoring for one request at a time.
// Work inside a request is sequential.
type RecommendationService struct {
	discovery   *CollectionDiscovery
	sync        *CollectionSync
	collections repository.CollectionRepository
	runs        repository.RunRepository
	cfg         config.Recommender
	now         func() time.Time
}

func NewRecommendationService(discovery *CollectionDiscovery, sync *CollectionSync, collections repository.CollectionRepository, runs repository.RunRepository, cfg config.Recommender) *RecommendationService {
	return &RecommendationService{
		discovery:   discovery,
		sync:        sync,
		collections: collections,
		runs:        runs,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Validate fills defaults and caps the tuning parameters
func (s *RecommendationService) Validate(req *RecommendationRequest) error {
	if len(req.Seeds) == 0 {
		return fmt.Errorf("%w: at least one seed is required", ErrInvalidRequest)
	}
	for i := range req.Seeds {
		seed := &req.Seeds[i]
		seed.Query = strings.TrimSpace(seed.Query)
		seed.TrackID = strings.TrimSpace(seed.TrackID)
		if (seed.Query == "") == (seed.TrackID == "") {
			return fmt.Errorf("%w: seed %d needs exactly one of query or track_id", ErrInvalidRequest, i)
		}
	}

	var err error
	req.CollectionsPerSeed, err = clampParam("collections_per_seed", req.CollectionsPerSeed, s.cfg.DefaultCollectionsPerSeed, s.cfg.MaxCollectionsPerSeed)
	if err != nil {
		return err
	}
	req.ResultsToReturn, err = clampParam("results_to_return", req.ResultsToReturn, s.cfg.DefaultResultsToReturn, s.cfg.MaxResultsToReturn)
	return err
}

func clampParam(name string, value, def, ceiling int) (int, error) {
	switch {
	case value < 0:
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidRequest, name)
	case value == 0:
		value = def
	}
	if ceiling > 0 && value > ceiling {
		value = ceiling
	}
	return value, nil
}

// trackScore accumulates one candidate's frequency across distinct collections
type trackScore struct {
	track   models.Track
	count   int
	foundIn map[string]struct{}
}

// seedMatcher decides whether a catalog track is one of the request's own seeds
type seedMatcher struct {
	source models.Source
	ids    map[string]bool
	texts  []string
}

func newSeedMatcher(source models.Source, seeds []Seed) *seedMatcher {
	m := &seedMatcher{source: source, ids: make(map[string]bool)}
	for _, seed := range seeds {
		if seed.TrackID != "" {
			m.ids[seed.TrackID] = true
			continue
		}
		m.addText(seed.Query)
	}
	return m
}

func (m *seedMatcher) addText(text string) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return
	}
	for _, known := range m.texts {
		if known == text {
			return
		}
	}
	m.texts = append(m.texts, text)
}

func (m *seedMatcher) matches(track *models.Track) bool {
	if id := track.ExternalID(m.source); id != "" && m.ids[id] {
		return true
	}
	display := strings.ToLower(track.Artist + " " + track.Title)
	for _, text := range m.texts {
		if strings.Contains(display, text) {
			return true
		}
		if track.NormalizedTitle != "" && strings.Contains(text, track.NormalizedTitle) {
			return true
		}
		if track.NormalizedArtist != "" &&
			track.NormalizedArtist != strings.ToLower(normalize.UnknownArtist) &&
			strings.Contains(text, track.NormalizedArtist) {
			return true
		}
	}
	return false
}

// Recommend runs the whole pipeline. A cancelled or failed run returns an error and
// leaves everything already synced in storage.
func (s *RecommendationService) Recommend(ctx context.Context, req RecommendationRequest) (*RecommendationResult, error) {
	if err := s.Validate(&req); err != nil {
		return nil, err
	}

	run := &models.RecommendationRun{
		ID:                 uuid.New().String(),
		CollectionsPerSeed: req.CollectionsPerSeed,
		ResultsToReturn:    req.ResultsToReturn,
		StartedAt:          s.now(),
	}
	for _, seed := range req.Seeds {
		run.Seeds = append(run.Seeds, seed.String())
	}

	logger.Info("Starting recommendation run",
		logger.String("run_id", run.ID),
		logger.Int("seeds", len(req.Seeds)),
		logger.Int("collections_per_seed", req.CollectionsPerSeed))

	result, err := s.run(ctx, req)
	s.record(ctx, run, result, err)
	if err != nil {
		return nil, err
	}
	result.RunID = run.ID
	return result, nil
}

func (s *RecommendationService) run(ctx context.Context, req RecommendationRequest) (*RecommendationResult, error) {
	result := &RecommendationResult{Recommendations: []ScoredTrack{}}
	stats := &result.Stats
	matcher := newSeedMatcher(s.discovery.provider.Source(), req.Seeds)

	processed := make(map[uint]bool)
	var seenTitles []string
	seedTracks := make(map[uint]bool)
	scores := make(map[uint]*trackScore)

	for i, seed := range req.Seeds {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("recommendation cancelled before seed %d: %w", i, err)
		}

		discoveryReq := DiscoveryRequest{
			Query:          seed.Query,
			TrackID:        seed.TrackID,
			MaxCollections: req.CollectionsPerSeed,
		}
		if req.ExcludeSeenTitles {
			discoveryReq.ExcludedTitles = append([]string(nil), seenTitles...)
		}
		discovered, err := s.discovery.Discover(ctx, discoveryReq, stats)
		if err != nil {
			return result, fmt.Errorf("discover seed %q: %w", seed.String(), err)
		}
		if seed.TrackID != "" {
			matcher.addText(discovered.SeedText)
		}

		taken := 0
		for j := range discovered.Collections {
			if taken >= req.CollectionsPerSeed {
				break
			}
			collection := &discovered.Collections[j]
			if processed[collection.ID] {
				continue
			}
			processed[collection.ID] = true
			taken++
			if collection.Title != "" {
				seenTitles = append(seenTitles, collection.Title)
			}

			if _, err := s.sync.Sync(ctx, collection, s.cfg.CollectionSyncMaxAge, stats); err != nil {
				return result, fmt.Errorf("sync collection %d: %w", collection.ID, err)
			}
			links, err := s.collections.Tracks(ctx, collection.ID)
			if err != nil {
				return result, fmt.Errorf("load tracks of collection %d: %w", collection.ID, err)
			}

			name := collection.Title
			if name == "" {
				name = collection.ExternalID
			}
			for _, link := range links {
				if link.Track == nil || seedTracks[link.TrackID] {
					continue
				}
				if matcher.matches(link.Track) {
					seedTracks[link.TrackID] = true
					delete(scores, link.TrackID)
					continue
				}
				score, ok := scores[link.TrackID]
				if !ok {
					score = &trackScore{track: *link.Track, foundIn: make(map[string]struct{})}
					scores[link.TrackID] = score
				}
				score.count++
				score.foundIn[name] = struct{}{}
			}
		}
	}

	result.CollectionsProcessed = len(processed)
	result.TotalTracksFound = len(scores)
	result.Recommendations = rankScores(scores, req.ResultsToReturn)
	return result, nil
}

// rankScores orders by frequency desc, title asc, id asc and keeps the top limit
func rankScores(scores map[uint]*trackScore, limit int) []ScoredTrack {
	ranked := make([]ScoredTrack, 0, len(scores))
	for _, score := range scores {
		foundIn := make([]string, 0, len(score.foundIn))
		for name := range score.foundIn {
			foundIn = append(foundIn, name)
		}
		sort.Strings(foundIn)
		ranked = append(ranked, ScoredTrack{
			Track:              score.track,
			Frequency:          score.count,
			FoundInCollections: foundIn,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		if a.Track.Title != b.Track.Title {
			return a.Track.Title < b.Track.Title
		}
		return a.Track.ID < b.Track.ID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// record writes run history. A write failure is logged and never replaces the run's own error.
func (s *RecommendationService) record(ctx context.Context, run *models.RecommendationRun, result *RecommendationResult, runErr error) {
	run.FinishedAt = s.now()
	switch {
	case runErr == nil:
		run.Status = models.RunStatusCompleted
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		run.Status = models.RunStatusCancelled
		run.ErrorMsg = runErr.Error()
	default:
		run.Status = models.RunStatusFailed
		run.ErrorMsg = runErr.Error()
	}

	if result != nil {
		run.TotalTracksFound = result.TotalTracksFound
		run.CollectionsProcessed = result.CollectionsProcessed
		run.SearchCalls = result.Stats.SearchCalls
		run.FetchCalls = result.Stats.FetchCalls
		run.QuotaUnitsUsed = result.Stats.QuotaUnitsUsed
		run.SearchCacheHits = result.Stats.SearchCacheHits
		run.CollectionCacheHits = result.Stats.CollectionCacheHits
		run.QuotaBlockedSearches = result.Stats.QuotaBlockedSearches
		run.QuotaBlockedSyncs = result.Stats.QuotaBlockedSyncs
		run.CollectionsSynced = result.Stats.CollectionsSynced
	}

	if err := s.runs.Create(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("Failed to record recommendation run",
			logger.String("run_id", run.ID),
			logger.ErrorField(err))
		return
	}

	logger.Info("Finished recommendation run",
		logger.String("run_id", run.ID),
		logger.String("status", string(run.Status)),
		logger.Int("collections_processed", run.CollectionsProcessed),
		logger.Int("tracks_found", run.TotalTracksFound),
		logger.Int("units_used", run.QuotaUnitsUsed))
}

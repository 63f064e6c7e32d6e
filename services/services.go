package services

import (
	"cratedig/config"
	"cratedig/provider"
	"cratedig/repository"
)

// Services is the wired service graph shared by the HTTP server and the CLI
type Services struct {
	Quota          *QuotaService
	SearchCache    *SearchCacheService
	Resolver       *TrackResolver
	Discovery      *CollectionDiscovery
	Sync           *CollectionSync
	Recommendation *RecommendationService
	Catalog        *CatalogService
	Resync         *ResyncService
}

func New(repos *repository.Repositories, p provider.CollectionProvider, cfg config.Recommender) *Services {
	s := &Services{
		Quota:       NewQuotaService(repos.Quota, cfg.QuotaLimits),
		SearchCache: NewSearchCacheService(repos.SearchCache),
		Resolver:    NewTrackResolver(repos.Tracks),
		Catalog:     NewCatalogService(repos.Tracks, repos.Collections, repos.Runs, cfg),
	}
	s.Discovery = NewCollectionDiscovery(p, repos.Collections, s.SearchCache, s.Quota, cfg)
	s.Sync = NewCollectionSync(p, repos.Collections, s.Resolver, s.Quota, cfg)
	s.Recommendation = NewRecommendationService(s.Discovery, s.Sync, repos.Collections, repos.Runs, cfg)
	s.Resync = NewResyncService(repos.Collections, s.Sync, cfg)
	return s
}

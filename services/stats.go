package services

// Stats accounts for provider calls, cache use and quota decisions during one run
type Stats struct {
	SearchCalls          int `json:"search_calls"`
	FetchCalls           int `json:"fetch_calls"`
	QuotaUnitsUsed       int `json:"quota_units_used"`
	SearchCacheHits      int `json:"search_cache_hits"`
	CollectionCacheHits  int `json:"collection_cache_hits"`
	QuotaBlockedSearches int `json:"quota_blocked_searches"`
	QuotaBlockedSyncs    int `json:"quota_blocked_syncs"`
	CollectionsSynced    int `json:"collections_synced"`
}

func (s *Stats) Add(other Stats) {
	s.SearchCalls += other.SearchCalls
	s.FetchCalls += other.FetchCalls
	s.QuotaUnitsUsed += other.QuotaUnitsUsed
	s.SearchCacheHits += other.SearchCacheHits
	s.CollectionCacheHits += other.CollectionCacheHits
	s.QuotaBlockedSearches += other.QuotaBlockedSearches
	s.QuotaBlockedSyncs += other.QuotaBlockedSyncs
	s.CollectionsSynced += other.CollectionsSynced
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// RecommendationRun is the audit record of one orchestrator run
type RecommendationRun struct {
	ID                   string                      `gorm:"primaryKey;size:36" json:"id"`
	Seeds                datatypes.JSONSlice[string] `json:"seeds"`
	CollectionsPerSeed   int                         `json:"collections_per_seed"`
	ResultsToReturn      int                         `json:"results_to_return"`
	Status               RunStatus                   `gorm:"size:20;index" json:"status"`
	ErrorMsg             string                      `gorm:"type:text" json:"error_msg,omitempty"`
	TotalTracksFound     int                         `json:"total_tracks_found"`
	CollectionsProcessed int                         `json:"collections_processed"`
	SearchCalls          int                         `json:"search_calls"`
	FetchCalls           int                         `json:"fetch_calls"`
	QuotaUnitsUsed       int                         `json:"quota_units_used"`
	SearchCacheHits      int                         `json:"search_cache_hits"`
	CollectionCacheHits  int                         `json:"collection_cache_hits"`
	QuotaBlockedSearches int                         `json:"quota_blocked_searches"`
	QuotaBlockedSyncs    int                         `json:"quota_blocked_syncs"`
	CollectionsSynced    int                         `json:"collections_synced"`
	StartedAt            time.Time                   `json:"started_at"`
	FinishedAt           time.Time                   `json:"finished_at"`
}

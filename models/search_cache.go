package models

import (
	"time"

	"gorm.io/datatypes"
)

// SearchCache memoizes one discovery call. Rows are never updated; a re-search adds a newer row.
type SearchCache struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Query           string     `gorm:"size:512;not null" json:"query"`
	NormalizedQuery string     `gorm:"size:512;not null;index:idx_search_cache_key,priority:1" json:"normalized_query"`
	Source          Source     `gorm:"size:20;not null;index:idx_search_cache_key,priority:2" json:"source"`
	SearchType      SearchType `gorm:"size:20;not null;index:idx_search_cache_key,priority:3" json:"search_type"`
	SearchedAt      time.Time  `gorm:"not null;index:idx_search_cache_key,priority:4" json:"searched_at"`
	ResultCount     int        `json:"result_count"`
	QuotaUsed       int        `json:"quota_used"`

	// Provider relevance order, preserved on replay
	CollectionIDs datatypes.JSONSlice[uint] `json:"collection_ids"`

	CreatedAt time.Time `json:"created_at"`
}

func (SearchCache) TableName() string {
	return "search_caches"
}

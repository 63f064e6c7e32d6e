package models

import (
	"time"
)

// QuotaDateLayout is the calendar-day key of a tracker row (UTC)
const QuotaDateLayout = "2006-01-02"

// QuotaTracker counts metered provider units for one source on one UTC day
type QuotaTracker struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Date        string    `gorm:"size:10;not null;uniqueIndex:idx_quota_date_source,priority:1" json:"date"`
	Source      Source    `gorm:"size:20;not null;uniqueIndex:idx_quota_date_source,priority:2" json:"source"`
	UnitsUsed   int       `gorm:"not null;default:0" json:"units_used"`
	SearchCalls int       `gorm:"not null;default:0" json:"search_calls"`
	FetchCalls  int       `gorm:"not null;default:0" json:"fetch_calls"`
	DailyLimit  int       `gorm:"not null" json:"daily_limit"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Remaining is max(0, DailyLimit - UnitsUsed)
func (q *QuotaTracker) Remaining() int {
	if r := q.DailyLimit - q.UnitsUsed; r > 0 {
		return r
	}
	return 0
}

func (q *QuotaTracker) CanUse(units int) bool {
	return q.Remaining() >= units
}

// QuotaDate formats t as a tracker day key
func QuotaDate(t time.Time) string {
	return t.UTC().Format(QuotaDateLayout)
}

// UnknownSourceDailyLimit applies to sources without a configured limit
const UnknownSourceDailyLimit = 1000

// DefaultDailyLimit is the built-in daily unit budget for a source
func DefaultDailyLimit(source Source) int {
	switch source {
	case SourceYouTube:
		return 10000
	case SourceSpotify:
		return 100000
	case SourceSoundCloud:
		return 50000
	case SourceDiscogs:
		return 80000
	}
	return UnknownSourceDailyLimit
}

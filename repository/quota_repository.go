package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cratedig/models"
)

type quotaRepository struct {
	db *gorm.DB
}

func NewQuotaRepository(db *gorm.DB) QuotaRepository {
	return &quotaRepository{db: db}
}

// GetOrCreate inserts the day's row if missing and returns the stored row.
// Concurrent first touches collapse onto the unique (date, source) index.
func (r *quotaRepository) GetOrCreate(ctx context.Context, date string, source models.Source, dailyLimit int) (*models.QuotaTracker, error) {
	db := r.db.WithContext(ctx)

	row := models.QuotaTracker{Date: date, Source: source, DailyLimit: dailyLimit}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create quota tracker %s/%s: %w", date, source, err)
	}

	var tracker models.QuotaTracker
	if err := db.Where("date = ? AND source = ?", date, source).First(&tracker).Error; err != nil {
		return nil, fmt.Errorf("failed to load quota tracker %s/%s: %w", date, source, notFound(err))
	}
	return &tracker, nil
}

func (r *quotaRepository) Increment(ctx context.Context, date string, source models.Source, units, searchCalls, fetchCalls int) error {
	res := r.db.WithContext(ctx).
		Model(&models.QuotaTracker{}).
		Where("date = ? AND source = ?", date, source).
		Updates(map[string]interface{}{
			"units_used":   gorm.Expr("units_used + ?", units),
			"search_calls": gorm.Expr("search_calls + ?", searchCalls),
			"fetch_calls":  gorm.Expr("fetch_calls + ?", fetchCalls),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to increment quota %s/%s: %w", date, source, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *quotaRepository) MarkExhausted(ctx context.Context, date string, source models.Source) error {
	err := r.db.WithContext(ctx).
		Model(&models.QuotaTracker{}).
		Where("date = ? AND source = ? AND units_used < daily_limit", date, source).
		Update("units_used", gorm.Expr("daily_limit")).Error
	if err != nil {
		return fmt.Errorf("failed to mark quota exhausted %s/%s: %w", date, source, err)
	}
	return nil
}

func (r *quotaRepository) List(ctx context.Context, date string) ([]models.QuotaTracker, error) {
	var trackers []models.QuotaTracker
	if err := r.db.WithContext(ctx).Where("date = ?", date).Order("source ASC").Find(&trackers).Error; err != nil {
		return nil, fmt.Errorf("failed to list quota trackers for %s: %w", date, err)
	}
	return trackers, nil
}

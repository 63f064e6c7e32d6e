package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"cratedig/models"
)

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) Create(ctx context.Context, run *models.RecommendationRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

func (r *runRepository) ByID(ctx context.Context, id string) (*models.RecommendationRun, error) {
	var run models.RecommendationRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, notFound(err)
	}
	return &run, nil
}

func (r *runRepository) Recent(ctx context.Context, limit int) ([]models.RecommendationRun, error) {
	var runs []models.RecommendationRun
	if err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

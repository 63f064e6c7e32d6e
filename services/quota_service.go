package services

import (
	"context"
	"fmt"
	"time"

	"cratedig/logger"
	"cratedig/models"
	"cratedig/repository"
)

// QuotaStatus is a day tracker with its derived remaining budget
type QuotaStatus struct {
	models.QuotaTracker
	Remaining int `json:"remaining"`
}

// QuotaService enforces the per-source daily unit budget.
//
// CanUse followed by Increment is check-then-act: two runs touching the same
// source can both pass the check and overspend the day's budget by one call
// each. The increment itself is a single atomic update in storage.
type QuotaService struct {
	repo   repository.QuotaRepository
	limits map[models.Source]int
	now    func() time.Time
}

func NewQuotaService(repo repository.QuotaRepository, limits map[models.Source]int) *QuotaService {
	return &QuotaService{
		repo:   repo,
		limits: limits,
		now:    time.Now,
	}
}

// DailyLimit returns the configured limit, the built-in default otherwise.
// A configured zero disables the source.
func (s *QuotaService) DailyLimit(source models.Source) int {
	if limit, ok := s.limits[source]; ok && limit >= 0 {
		return limit
	}
	return models.DefaultDailyLimit(source)
}

func (s *QuotaService) today() string {
	return models.QuotaDate(s.now())
}

func (s *QuotaService) GetOrCreateToday(ctx context.Context, source models.Source) (*models.QuotaTracker, error) {
	tracker, err := s.repo.GetOrCreate(ctx, s.today(), source, s.DailyLimit(source))
	if err != nil {
		return nil, err
	}
	return tracker, nil
}

func (s *QuotaService) CanUse(ctx context.Context, source models.Source, units int) (bool, error) {
	tracker, err := s.GetOrCreateToday(ctx, source)
	if err != nil {
		return false, err
	}
	return tracker.CanUse(units), nil
}

// Increment records spend the provider has already charged. Cancellation of
// ctx is ignored.
func (s *QuotaService) Increment(ctx context.Context, source models.Source, units, searchCalls, fetchCalls int) error {
	if units == 0 && searchCalls == 0 && fetchCalls == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	if _, err := s.GetOrCreateToday(ctx, source); err != nil {
		return err
	}
	if err := s.repo.Increment(ctx, s.today(), source, units, searchCalls, fetchCalls); err != nil {
		return fmt.Errorf("quota increment for %s: %w", source, err)
	}
	return nil
}

// MarkExhausted records that the provider itself refused further calls today
func (s *QuotaService) MarkExhausted(ctx context.Context, source models.Source) error {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.GetOrCreateToday(ctx, source); err != nil {
		return err
	}
	logger.Warn("Provider reported quota exhausted", logger.String("source", string(source)))
	return s.repo.MarkExhausted(ctx, s.today(), source)
}

// Status returns today's tracker for each source, all known sources when none are given
func (s *QuotaService) Status(ctx context.Context, sources ...models.Source) ([]QuotaStatus, error) {
	if len(sources) == 0 {
		sources = models.AllSources
	}
	statuses := make([]QuotaStatus, 0, len(sources))
	for _, source := range sources {
		tracker, err := s.GetOrCreateToday(ctx, source)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, QuotaStatus{QuotaTracker: *tracker, Remaining: tracker.Remaining()})
	}
	return statuses, nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

// AnalyticsService computes the dashboard aggregates fresh on every call.
type AnalyticsService struct {
	expenses   storage.Expenses
	categories storage.Categories
	now        func() time.Time
}

func NewAnalyticsService(expenses storage.Expenses, categories storage.Categories) *AnalyticsService {
	return &AnalyticsService{
		expenses:   expenses,
		categories: categories,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Compute aggregates the user's expenses between from and to (inclusive, both
// optional). The monthly trend always covers the year before now.
func (s *AnalyticsService) Compute(ctx context.Context, userID string, from, to *time.Time) (core.Analytics, error) {
	now := s.now()
	trendFrom, trendTo := core.TrendWindow(now)

	var (
		inRange    []core.Expense
		recent     []core.Expense
		categories []core.Category
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inRange, _, err = s.expenses.ListExpenses(gctx, userID, storage.ExpenseQuery{From: from, To: to})
		if err != nil {
			return fmt.Errorf("load expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recent, _, err = s.expenses.ListExpenses(gctx, userID, storage.ExpenseQuery{From: &trendFrom, To: &trendTo})
		if err != nil {
			return fmt.Errorf("load trend expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		categories, err = s.categories.ListCategories(gctx, userID)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Analytics{}, err
	}

	return core.Analyze(inRange, recent, categories, now), nil
}

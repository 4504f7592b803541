package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/storage"
)

// EventPublisher announces expense changes to other processes.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, evt amqp.ExpenseEvent) error
}

// ExpenseService orchestrates expense operations across storage and AMQP.
type ExpenseService struct {
	expenses   storage.Expenses
	categories storage.Categories
	publisher  EventPublisher
	now        func() time.Time
}

// NewExpenseService wires the service. publisher may be nil, in which case no
// events are sent.
func NewExpenseService(expenses storage.Expenses, categories storage.Categories, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		expenses:   expenses,
		categories: categories,
		publisher:  publisher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// NewExpense is the input of Create. Amount is a pointer so that a missing
// amount can be told apart from zero.
type NewExpense struct {
	Amount      *core.Money
	Description string
	CategoryID  string
	Place       string
	Date        *time.Time
}

// ListFilter selects a page of expenses. From and To are inclusive.
type ListFilter struct {
	From       *time.Time
	To         *time.Time
	CategoryID string
	Page       int
	Limit      int
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

type ExpensePage struct {
	Expenses   []core.ExpenseView `json:"expenses"`
	Pagination Pagination         `json:"pagination"`
}

func (f ListFilter) normalized() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = storage.DefaultPageSize
	}
	if f.Limit > storage.MaxPageSize {
		f.Limit = storage.MaxPageSize
	}
	return f
}

// List returns one page of the user's expenses, newest first, with categories resolved.
func (s *ExpenseService) List(ctx context.Context, userID string, f ListFilter) (ExpensePage, error) {
	f = f.normalized()
	q := storage.ExpenseQuery{
		From:       f.From,
		To:         f.To,
		CategoryID: f.CategoryID,
		Offset:     (f.Page - 1) * f.Limit,
		Limit:      f.Limit,
	}

	items, total, err := s.expenses.ListExpenses(ctx, userID, q)
	if err != nil {
		return ExpensePage{}, fmt.Errorf("list expenses: %w", err)
	}

	views, err := s.resolve(ctx, userID, items)
	if err != nil {
		return ExpensePage{}, err
	}

	pages := total / int64(f.Limit)
	if total%int64(f.Limit) != 0 {
		pages++
	}

	return ExpensePage{
		Expenses: views,
		Pagination: Pagination{
			Page:  f.Page,
			Limit: f.Limit,
			Total: total,
			Pages: pages,
		},
	}, nil
}

// Export returns every expense matching the date and category filters, ignoring paging.
func (s *ExpenseService) Export(ctx context.Context, userID string, f ListFilter) ([]core.ExpenseView, error) {
	items, _, err := s.expenses.ListExpenses(ctx, userID, storage.ExpenseQuery{
		From:       f.From,
		To:         f.To,
		CategoryID: f.CategoryID,
	})
	if err != nil {
		return nil, fmt.Errorf("export expenses: %w", err)
	}
	return s.resolve(ctx, userID, items)
}

func (s *ExpenseService) Get(ctx context.Context, userID, id string) (core.ExpenseView, error) {
	e, err := s.expenses.GetExpense(ctx, userID, id)
	if err != nil {
		return core.ExpenseView{}, err
	}
	return s.view(ctx, e)
}

// Create records an expense in one of the user's categories.
func (s *ExpenseService) Create(ctx context.Context, userID string, in NewExpense) (core.ExpenseView, error) {
	if in.Amount == nil ||
		strings.TrimSpace(in.Description) == "" ||
		strings.TrimSpace(in.CategoryID) == "" ||
		strings.TrimSpace(in.Place) == "" {
		return core.ExpenseView{}, core.ErrMissingFields
	}

	cat, err := s.categories.GetCategory(ctx, userID, strings.TrimSpace(in.CategoryID))
	if err != nil {
		return core.ExpenseView{}, err
	}

	e := core.Expense{
		UserID:      userID,
		Amount:      *in.Amount,
		Description: strings.TrimSpace(in.Description),
		CategoryID:  cat.ID,
		Place:       strings.TrimSpace(in.Place),
		Date:        s.now(),
	}
	if in.Date != nil {
		e.Date = in.Date.UTC()
	}
	if err := e.Validate(); err != nil {
		return core.ExpenseView{}, err
	}

	created, err := s.expenses.CreateExpense(ctx, e)
	if err != nil {
		return core.ExpenseView{}, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, amqp.ExpenseCreated, created)
	return created.View(cat), nil
}

// Update applies the supplied fields of patch. A new category must belong to
// the user; the expense is left untouched when any check fails.
func (s *ExpenseService) Update(ctx context.Context, userID, id string, patch core.ExpensePatch) (core.ExpenseView, error) {
	e, err := s.expenses.GetExpense(ctx, userID, id)
	if err != nil {
		return core.ExpenseView{}, err
	}

	if patch.CategoryID != nil && strings.TrimSpace(*patch.CategoryID) != "" {
		if _, err := s.categories.GetCategory(ctx, userID, strings.TrimSpace(*patch.CategoryID)); err != nil {
			return core.ExpenseView{}, err
		}
	}

	patch.Apply(&e)
	if err := e.Validate(); err != nil {
		return core.ExpenseView{}, err
	}

	updated, err := s.expenses.UpdateExpense(ctx, e)
	if err != nil {
		return core.ExpenseView{}, err
	}

	s.publish(ctx, amqp.ExpenseUpdated, updated)
	return s.view(ctx, updated)
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	if err := s.expenses.DeleteExpense(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.ExpenseDeleted, core.Expense{ID: id, UserID: userID})
	return nil
}

func (s *ExpenseService) view(ctx context.Context, e core.Expense) (core.ExpenseView, error) {
	cat, err := s.categories.GetCategory(ctx, e.UserID, e.CategoryID)
	if err != nil {
		return core.ExpenseView{}, fmt.Errorf("resolve category %s: %w", e.CategoryID, err)
	}
	return e.View(cat), nil
}

func (s *ExpenseService) resolve(ctx context.Context, userID string, items []core.Expense) ([]core.ExpenseView, error) {
	cats, err := s.categories.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	byID := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	views := make([]core.ExpenseView, 0, len(items))
	for _, e := range items {
		c, ok := byID[e.CategoryID]
		if !ok {
			c = core.Category{ID: e.CategoryID}
		}
		views = append(views, e.View(c))
	}
	return views, nil
}

// publish sends the event without failing the request; the expense is already saved.
func (s *ExpenseService) publish(ctx context.Context, t amqp.EventType, e core.Expense) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping event", "type", t)
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(t, e.UserID, e.ID)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"type", t,
			"expense_id", e.ID,
			"error", err)
	}
}

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.ExpenseEvent
	err    error
}

func (p *recordingPublisher) PublishExpenseEvent(_ context.Context, evt amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func money(t *testing.T, s string) *core.Money {
	t.Helper()
	m, err := core.MoneyFromDecimalString(s)
	require.NoError(t, err)
	return &m
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	store      *memory.Store
	categories *CategoryService
	expenses   *ExpenseService
	analytics  *AnalyticsService
	publisher  *recordingPublisher
	alice      string
	bob        string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	alice, err := store.UpsertUser(ctx, core.User{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)
	bob, err := store.UpsertUser(ctx, core.User{Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	return &fixture{
		store:      store,
		categories: NewCategoryService(store, store),
		expenses:   NewExpenseService(store, store, pub),
		analytics:  NewAnalyticsService(store, store),
		publisher:  pub,
		alice:      alice.ID,
		bob:        bob.ID,
	}
}

func TestCategoryService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c, err := f.categories.Create(ctx, f.alice, "  Food  ", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Food", c.Name)
	assert.Equal(t, core.DefaultCategoryColor, c.Color)
	assert.Equal(t, core.DefaultCategoryIcon, c.Icon)
	assert.NotEmpty(t, c.ID)

	_, err = f.categories.Create(ctx, f.alice, "Food", "#ff0000", "🍕")
	assert.ErrorIs(t, err, core.ErrConflict)

	// Names are unique per user only.
	_, err = f.categories.Create(ctx, f.bob, "Food", "", "")
	assert.NoError(t, err)

	_, err = f.categories.Create(ctx, f.alice, "   ", "", "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.categories.Create(ctx, f.alice, "Travel", "blue", "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCategoryService_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	food, err := f.categories.Create(ctx, f.alice, "Food", "", "")
	require.NoError(t, err)
	_, err = f.categories.Create(ctx, f.alice, "Travel", "", "")
	require.NoError(t, err)

	updated, err := f.categories.Update(ctx, f.alice, food.ID, core.CategoryPatch{Color: ptr("#00ff00")})
	require.NoError(t, err)
	assert.Equal(t, "Food", updated.Name)
	assert.Equal(t, "#00ff00", updated.Color)

	// Keeping the same name is not a conflict with itself.
	_, err = f.categories.Update(ctx, f.alice, food.ID, core.CategoryPatch{Name: ptr("Food")})
	assert.NoError(t, err)

	_, err = f.categories.Update(ctx, f.alice, food.ID, core.CategoryPatch{Name: ptr("Travel")})
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = f.categories.Update(ctx, f.bob, food.ID, core.CategoryPatch{Name: ptr("Mine")})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCategoryService_DeleteInUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	food, err := f.categories.Create(ctx, f.alice, "Food", "", "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.expenses.Create(ctx, f.alice, NewExpense{
			Amount:      money(t, "10"),
			Description: "Lunch",
			CategoryID:  food.ID,
			Place:       "Cafe",
		})
		require.NoError(t, err)
	}

	err = f.categories.Delete(ctx, f.alice, food.ID)
	require.ErrorIs(t, err, core.ErrConflict)
	var inUse *core.CategoryInUseError
	require.True(t, errors.As(err, &inUse))
	assert.Equal(t, int64(3), inUse.Count)
	assert.Equal(t, "Cannot delete category. It is used by 3 expense(s).", err.Error())

	_, err = f.categories.Get(ctx, f.alice, food.ID)
	assert.NoError(t, err, "category must survive a refused delete")
}

func TestCategoryService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c, err := f.categories.Create(ctx, f.alice, "Unused", "", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.categories.Delete(ctx, f.bob, c.ID), core.ErrNotFound)
	require.NoError(t, f.categories.Delete(ctx, f.alice, c.ID))
	assert.ErrorIs(t, f.categories.Delete(ctx, f.alice, c.ID), core.ErrNotFound)
}

func TestExpenseService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food, err := f.categories.Create(ctx, f.alice, "Food", "", "")
	require.NoError(t, err)

	date := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	view, err := f.expenses.Create(ctx, f.alice, NewExpense{
		Amount:      money(t, "12,50"),
		Description: "Groceries",
		CategoryID:  food.ID,
		Place:       "Market",
		Date:        &date,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1250), view.Amount.Cents)
	assert.Equal(t, date, view.Date)
	assert.Equal(t, "Food", view.Category.Name)
	assert.Equal(t, core.DefaultCategoryIcon, view.Category.Icon)
	assert.Equal(t, []amqp.EventType{amqp.ExpenseCreated}, f.publisher.types())
}

func TestExpenseService_CreateDefaultsDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	f.expenses.now = func() time.Time { return now }

	food, err := f.categories.Create(ctx, f.alice, "Food", "", "")
	require.NoError(t, err)

	view, err := f.expenses.Create(ctx, f.alice, NewExpense{
		Amount:      money(t, "0"),
		Description: "Free sample",
		CategoryID:  food.ID,
		Place:       "Market",
	})
	require.NoError(t, err)
	assert.Equal(t, now, view.Date)
	assert.Equal(t, int64(0), view.Amount.Cents)
}

func TestExpenseService_CreateRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food, err := f.categories.Create(ctx, f.alice, "Food", "", "")
	require.NoError(t, err)
	bobs, err := f.categories.Create(ctx, f.bob, "Bob's", "", "")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   NewExpense
		want error
	}{
		{"missing amount", NewExpense{Description: "x", CategoryID: food.ID, Place: "p"}, core.ErrMissingFields},
		{"blank description", NewExpense{Amount: money(t, "1"), Description: " ", CategoryID: food.ID, Place: "p"}, core.ErrMissingFields},
		{"missing category", NewExpense{Amount: money(t, "1"), Description: "x", Place: "p"}, core.ErrMissingFields},
		{"missing place", NewExpense{Amount: money(t, "1"), Description: "x", CategoryID: food.ID}, core.ErrMissingFields},
		{"unknown category", NewExpense{Amount: money(t, "1"), Description: "x", CategoryID: "nope", Place: "p"}, core.ErrNotFound},
		{"other user's category", NewExpense{Amount: money(t, "1"), Description: "x", CategoryID: bobs.ID, Place: "p"}, core.ErrNotFound},
		{"amount above maximum", NewExpense{Amount: &core.Money{Cents: core.MaxAmountCents + 1}, Description: "x", CategoryID: food.ID, Place: "p"}, core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.expenses.Create(ctx, f.alice, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.publisher.types())
}

func TestExpenseService_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food, err := f.categories.Create(ctx, f.alice, "Food", "", "")
	require.NoError(t, err)
	travel, err := f.categories.Create(ctx, f.alice, "Travel", "#ff0000", "✈️")
	require.NoError(t, err)
	bobs, err := f.categories.Create(ctx, f.bob, "Bob's", "", "")
	require.NoError(t, err)

	created, err := f.expenses.Create(ctx, f.alice, NewExpense{
		Amount:      money(t, "30"),
		Description: "Taxi",
		CategoryID:  food.ID,
		Place:       "Airport",
	})
	require.NoError(t, err)

	updated, err := f.expenses.Update(ctx, f.alice, created.ID, core.ExpensePatch{
		CategoryID: &travel.ID,
		Amount:     money(t, "31.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3150), updated.Amount.Cents)
	assert.Equal(t, "Travel", updated.Category.Name)
	assert.Equal(t, "Taxi", updated.Description)

	t.Run("category of another user leaves expense unchanged", func(t *testing.T) {
		_, err := f.expenses.Update(ctx, f.alice, created.ID, core.ExpensePatch{
			CategoryID: &bobs.ID,
			Amount:     money(t, "99"),
		})
		require.ErrorIs(t, err, core.ErrNotFound)

		got, err := f.expenses.Get(ctx, f.alice, created.ID)
		require.NoError(t, err)
		assert.Equal(t, travel.ID, got.CategoryID)
		assert.Equal(t, int64(3150), got.Amount.Cents)
	})

	t.Run("blank description", func(t *testing.T) {
		_, err := f.expenses.Update(ctx, f.alice, created.ID, core.ExpensePatch{Description: ptr("  ")})
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("other user", func(t *testing.T) {
		_, err := f.expenses.Update(ctx, f.bob, created.ID, core.ExpensePatch{Place: ptr("Home")})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	assert.Equal(t, []amqp.EventType{amqp.ExpenseCreated, amqp.ExpenseUpdated}, f.publisher.types())
}

func TestExpenseService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food, err := f.categories.Create(ctx, f.alice, "Food", "", "")
	require.NoError(t, err)
	created, err := f.expenses.Create(ctx, f.alice, NewExpense{
		Amount: money(t, "5"), Description: "Coffee", CategoryID: food.ID, Place: "Bar",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.expenses.Delete(ctx, f.bob, created.ID), core.ErrNotFound)
	require.NoError(t, f.expenses.Delete(ctx, f.alice, created.ID))
	assert.ErrorIs(t, f.expenses.Delete(ctx, f.alice, created.ID), core.ErrNotFound)

	_, err = f.expenses.Get(ctx, f.alice, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, []amqp.EventType{amqp.ExpenseCreated, amqp.ExpenseDeleted}, f.publisher.types())
}

func TestExpenseService_PublishFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	food, err := f.categories.Create(ctx, f.alice, "Food", "", "")
	require.NoError(t, err)

	_, err = f.expenses.Create(ctx, f.alice, NewExpense{
		Amount: money(t, "5"), Description: "Coffee", CategoryID: food.ID, Place: "Bar",
	})
	assert.NoError(t, err)
}

func TestExpenseService_NilPublisher(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	u, err := store.UpsertUser(ctx, core.User{Email: "solo@example.com"})
	require.NoError(t, err)
	cats := NewCategoryService(store, store)
	svc := NewExpenseService(store, store, nil)

	c, err := cats.Create(ctx, u.ID, "Food", "", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, u.ID, NewExpense{
		Amount: money(t, "5"), Description: "Coffee", CategoryID: c.ID, Place: "Bar",
	})
	assert.NoError(t, err)
}

func TestExpenseService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food, err := f.categories.Create(ctx, f.alice, "Food", "", "")
	require.NoError(t, err)
	travel, err := f.categories.Create(ctx, f.alice, "Travel", "", "")
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		cat := food.ID
		if i%2 == 1 {
			cat = travel.ID
		}
		d := base.AddDate(0, 0, i)
		_, err := f.expenses.Create(ctx, f.alice, NewExpense{
			Amount: money(t, "10"), Description: "item", CategoryID: cat, Place: "p", Date: &d,
		})
		require.NoError(t, err)
	}

	page, err := f.expenses.List(ctx, f.alice, ListFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 2, Limit: 2, Total: 5, Pages: 3}, page.Pagination)
	require.Len(t, page.Expenses, 2)
	assert.Equal(t, base.AddDate(0, 0, 2), page.Expenses[0].Date)
	assert.Equal(t, base.AddDate(0, 0, 1), page.Expenses[1].Date)
	assert.Equal(t, "Travel", page.Expenses[1].Category.Name)

	page, err = f.expenses.List(ctx, f.alice, ListFilter{CategoryID: travel.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Pagination.Total)
	assert.Equal(t, 50, page.Pagination.Limit)

	page, err = f.expenses.List(ctx, f.alice, ListFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Pagination.Limit)

	from, to := base.AddDate(0, 0, 1), base.AddDate(0, 0, 3)
	page, err = f.expenses.List(ctx, f.alice, ListFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Pagination.Total)

	page, err = f.expenses.List(ctx, f.bob, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Expenses)
	assert.Equal(t, int64(0), page.Pagination.Pages)

	all, err := f.expenses.Export(ctx, f.alice, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestAnalyticsService_Compute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	f.analytics.now = func() time.Time { return now }

	food, err := f.categories.Create(ctx, f.alice, "Food", "", "")
	require.NoError(t, err)
	travel, err := f.categories.Create(ctx, f.alice, "Travel", "", "")
	require.NoError(t, err)

	add := func(amount string, cat, place string, d time.Time) {
		_, err := f.expenses.Create(ctx, f.alice, NewExpense{
			Amount: money(t, amount), Description: "x", CategoryID: cat, Place: place, Date: &d,
		})
		require.NoError(t, err)
	}
	add("10", food.ID, "Market", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	add("20", food.ID, "Market", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	add("30", travel.ID, "Airport", time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))
	add("99", travel.ID, "Airport", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))

	// Bob's data must not leak into Alice's dashboard.
	bobs, err := f.categories.Create(ctx, f.bob, "Food", "", "")
	require.NoError(t, err)
	d := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.expenses.Create(ctx, f.bob, NewExpense{
		Amount: money(t, "1000"), Description: "x", CategoryID: bobs.ID, Place: "Market", Date: &d,
	})
	require.NoError(t, err)

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)
	a, err := f.analytics.Compute(ctx, f.alice, &from, &to)
	require.NoError(t, err)

	assert.Equal(t, int64(5000), a.Summary.Total.Cents)
	assert.Equal(t, 2, a.Summary.Count)
	assert.InDelta(t, 25.0, a.Summary.Average, 0.001)

	require.Len(t, a.CategoryBreakdown, 2)
	assert.Equal(t, "Travel", a.CategoryBreakdown[0].Name)
	assert.Equal(t, int64(3000), a.CategoryBreakdown[0].Total.Cents)

	// The trend ignores the requested range but stays within a year of now.
	require.Len(t, a.MonthlyTrend, 2)
	assert.Equal(t, 5, a.MonthlyTrend[0].Month)
	assert.Equal(t, 6, a.MonthlyTrend[1].Month)
	assert.Equal(t, int64(5000), a.MonthlyTrend[1].Total.Cents)

	all, err := f.analytics.Compute(ctx, f.alice, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, all.Summary.Count)
	require.NotEmpty(t, all.TopPlaces)
	assert.Equal(t, "Airport", all.TopPlaces[0].Place)
	assert.Equal(t, int64(12900), all.TopPlaces[0].Total.Cents)
}

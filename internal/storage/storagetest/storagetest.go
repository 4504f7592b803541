// Package storagetest holds the behavioural contract every storage.Store
// implementation must satisfy.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

// Run exercises newStore. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"UpsertUser", testUpsertUser},
		{"CategoryCRUD", testCategoryCRUD},
		{"CategoryUniquePerUser", testCategoryUniquePerUser},
		{"CategoryConcurrentCreate", testCategoryConcurrentCreate},
		{"CategoryOwnership", testCategoryOwnership},
		{"ExpenseCRUD", testExpenseCRUD},
		{"ExpenseListing", testExpenseListing},
		{"ExpenseOwnership", testExpenseOwnership},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func newUser(t *testing.T, s storage.Store, email string) core.User {
	t.Helper()
	u, err := s.UpsertUser(context.Background(), core.User{Name: "Test", Email: email, GoogleID: "g-" + email})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	return u
}

func newCategory(t *testing.T, s storage.Store, userID, name string) core.Category {
	t.Helper()
	c, err := s.CreateCategory(context.Background(), core.NewCategory(userID, name, "", ""))
	require.NoError(t, err)
	return c
}

func newExpense(t *testing.T, s storage.Store, userID, categoryID string, cents int64, place string, date time.Time) core.Expense {
	t.Helper()
	e, err := s.CreateExpense(context.Background(), core.Expense{
		UserID:      userID,
		CategoryID:  categoryID,
		Amount:      core.Money{Cents: cents},
		Description: "item",
		Place:       place,
		Date:        date,
	})
	require.NoError(t, err)
	return e
}

func testUpsertUser(t *testing.T, s storage.Store) {
	ctx := context.Background()
	first := newUser(t, s, "ada@example.com")

	again, err := s.UpsertUser(ctx, core.User{Name: "Ada L.", Email: "ADA@example.com", Image: "pic"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Ada L.", again.Name)
	assert.Equal(t, "pic", again.Image)

	got, err := s.GetUser(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testCategoryCRUD(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser(t, s, "cat@example.com")

	newCategory(t, s, u.ID, "Travel")
	food := newCategory(t, s, u.ID, "Food")
	assert.Equal(t, core.DefaultCategoryColor, food.Color)
	assert.Equal(t, core.DefaultCategoryIcon, food.Icon)

	list, err := s.ListCategories(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Food", list[0].Name)
	assert.Equal(t, "Travel", list[1].Name)

	byName, err := s.FindCategoryByName(ctx, u.ID, "Food")
	require.NoError(t, err)
	assert.Equal(t, food.ID, byName.ID)

	food.Name = "Groceries"
	food.Color = "#000000"
	updated, err := s.UpdateCategory(ctx, food)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", updated.Name)
	assert.Equal(t, "#000000", updated.Color)
	assert.Equal(t, core.DefaultCategoryIcon, updated.Icon)

	require.NoError(t, s.DeleteCategory(ctx, u.ID, food.ID))
	_, err = s.GetCategory(ctx, u.ID, food.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteCategory(ctx, u.ID, food.ID), core.ErrNotFound)
}

func testCategoryUniquePerUser(t *testing.T, s storage.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice@example.com")
	bob := newUser(t, s, "bob@example.com")

	newCategory(t, s, alice.ID, "Food")
	_, err := s.CreateCategory(ctx, core.NewCategory(alice.ID, "Food", "", ""))
	assert.ErrorIs(t, err, core.ErrConflict)

	// Names are case-sensitive and scoped per user.
	newCategory(t, s, alice.ID, "food")
	newCategory(t, s, bob.ID, "Food")

	travel := newCategory(t, s, alice.ID, "Travel")
	travel.Name = "Food"
	_, err = s.UpdateCategory(ctx, travel)
	assert.ErrorIs(t, err, core.ErrConflict)
}

func testCategoryConcurrentCreate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser(t, s, "race@example.com")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateCategory(ctx, core.NewCategory(u.ID, "Rent", "", ""))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, core.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)
}

func testCategoryOwnership(t *testing.T, s storage.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice@example.com")
	bob := newUser(t, s, "bob@example.com")
	food := newCategory(t, s, alice.ID, "Food")

	_, err := s.GetCategory(ctx, bob.ID, food.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	stolen := food
	stolen.UserID = bob.ID
	stolen.Name = "Mine"
	_, err = s.UpdateCategory(ctx, stolen)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, s.DeleteCategory(ctx, bob.ID, food.ID), core.ErrNotFound)

	list, err := s.ListCategories(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testExpenseCRUD(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser(t, s, "exp@example.com")
	food := newCategory(t, s, u.ID, "Food")
	travel := newCategory(t, s, u.ID, "Travel")

	date := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)
	e := newExpense(t, s, u.ID, food.ID, 1250, "market", date)
	assert.NotEmpty(t, e.ID)

	got, err := s.GetExpense(ctx, u.ID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), got.Amount.Cents)
	assert.True(t, got.Date.Equal(date), "date %v != %v", got.Date, date)
	assert.Equal(t, "market", got.Place)

	n, err := s.CountExpensesByCategory(ctx, u.ID, food.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got.CategoryID = travel.ID
	got.Amount = core.Money{Cents: 99}
	updated, err := s.UpdateExpense(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, travel.ID, updated.CategoryID)
	assert.Equal(t, int64(99), updated.Amount.Cents)

	n, err = s.CountExpensesByCategory(ctx, u.ID, food.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.DeleteExpense(ctx, u.ID, e.ID))
	_, err = s.GetExpense(ctx, u.ID, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteExpense(ctx, u.ID, e.ID), core.ErrNotFound)
}

func testExpenseListing(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser(t, s, "list@example.com")
	food := newCategory(t, s, u.ID, "Food")
	travel := newCategory(t, s, u.ID, "Travel")

	for d := 1; d <= 5; d++ {
		newExpense(t, s, u.ID, food.ID, int64(d*100), "market", time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC))
	}
	newExpense(t, s, u.ID, travel.ID, 5000, "station", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

	all, total, err := s.ListExpenses(ctx, u.ID, storage.ExpenseQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	require.Len(t, all, 6)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Date.After(all[i-1].Date), "expenses must be newest first")
	}

	page, total, err := s.ListExpenses(ctx, u.ID, storage.ExpenseQuery{Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	require.Len(t, page, 2)
	assert.Equal(t, all[2].ID, page[0].ID)
	assert.Equal(t, all[3].ID, page[1].ID)

	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	ranged, total, err := s.ListExpenses(ctx, u.ID, storage.ExpenseQuery{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, ranged, 3)

	byCat, total, err := s.ListExpenses(ctx, u.ID, storage.ExpenseQuery{CategoryID: travel.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, byCat, 1)
	assert.Equal(t, "station", byCat[0].Place)

	beyond, total, err := s.ListExpenses(ctx, u.ID, storage.ExpenseQuery{Offset: 10, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	assert.Empty(t, beyond)
}

func testExpenseOwnership(t *testing.T, s storage.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice@example.com")
	bob := newUser(t, s, "bob@example.com")
	food := newCategory(t, s, alice.ID, "Food")
	e := newExpense(t, s, alice.ID, food.ID, 100, "market", time.Now().UTC())

	_, err := s.GetExpense(ctx, bob.ID, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	stolen := e
	stolen.UserID = bob.ID
	_, err = s.UpdateExpense(ctx, stolen)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, s.DeleteExpense(ctx, bob.ID, e.ID), core.ErrNotFound)

	list, total, err := s.ListExpenses(ctx, bob.ID, storage.ExpenseQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	n, err := s.CountExpensesByCategory(ctx, bob.ID, food.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

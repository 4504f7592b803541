// Package storage defines the persistence ports of spendwise. Every method
// that touches categories or expenses takes the owning user id explicitly and
// never returns records of another user.
package storage

import (
	"context"
	"time"

	"spendwise/internal/core"
)

// Default and maximum page sizes for expense listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// ExpenseQuery filters an expense listing. From and To are inclusive and
// only applied when set. Limit 0 returns every match.
type ExpenseQuery struct {
	From       *time.Time
	To         *time.Time
	CategoryID string
	Offset     int
	Limit      int
}

// Matches reports whether e satisfies the date and category filters.
func (q ExpenseQuery) Matches(e core.Expense) bool {
	if q.From != nil && e.Date.Before(*q.From) {
		return false
	}
	if q.To != nil && e.Date.After(*q.To) {
		return false
	}
	if q.CategoryID != "" && e.CategoryID != q.CategoryID {
		return false
	}
	return true
}

type (
	Users interface {
		// UpsertUser creates the user or refreshes the profile of the user with the same email.
		UpsertUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id string) (core.User, error)
	}

	Categories interface {
		// ListCategories returns the user's categories ordered by name.
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
		GetCategory(ctx context.Context, userID, id string) (core.Category, error)
		FindCategoryByName(ctx context.Context, userID, name string) (core.Category, error)
		// CreateCategory returns core.ErrCategoryExists when the (user, name) pair is taken.
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		// UpdateCategory replaces name, color and icon of an existing category.
		UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, userID, id string) error
	}

	Expenses interface {
		// ListExpenses returns one page of matches, newest first, plus the total match count.
		ListExpenses(ctx context.Context, userID string, q ExpenseQuery) ([]core.Expense, int64, error)
		GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		DeleteExpense(ctx context.Context, userID, id string) error
		CountExpensesByCategory(ctx context.Context, userID, categoryID string) (int64, error)
	}

	// Store is the full persistence surface a backend provides.
	Store interface {
		Users
		Categories
		Expenses
		Ping(ctx context.Context) error
		Close() error
	}
)

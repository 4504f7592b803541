// Package memory is an in-process store for development and tests. Data is
// lost when the process exits.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

type Store struct {
	mu         sync.Mutex
	users      map[string]core.User
	categories map[string]core.Category
	expenses   map[string]core.Expense
	now        func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      make(map[string]core.User),
		categories: make(map[string]core.Category),
		expenses:   make(map[string]core.Expense),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) UpsertUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			existing.Name = u.Name
			existing.Image = u.Image
			existing.GoogleID = u.GoogleID
			existing.UpdatedAt = now
			s.users[id] = existing
			return existing, nil
		}
	}
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0)
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, userID, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return core.Category{}, core.ErrCategoryNotFound
	}
	return c, nil
}

func (s *Store) FindCategoryByName(_ context.Context, userID, name string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.categoryByName(userID, name); ok {
		return c, nil
	}
	return core.Category{}, core.ErrCategoryNotFound
}

func (s *Store) categoryByName(userID, name string) (core.Category, bool) {
	for _, c := range s.categories {
		if c.UserID == userID && c.Name == name {
			return c, true
		}
	}
	return core.Category{}, false
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.categoryByName(c.UserID, c.Name); taken {
		return core.Category{}, core.ErrCategoryExists
	}
	now := s.now()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.categories[c.ID]
	if !ok || existing.UserID != c.UserID {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if other, taken := s.categoryByName(c.UserID, c.Name); taken && other.ID != c.ID {
		return core.Category{}, core.ErrCategoryExists
	}
	existing.Name = c.Name
	existing.Color = c.Color
	existing.Icon = c.Icon
	existing.UpdatedAt = s.now()
	s.categories[c.ID] = existing
	return existing, nil
}

func (s *Store) DeleteCategory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return core.ErrCategoryNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, userID string, q storage.ExpenseQuery) ([]core.Expense, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if e.UserID == userID && q.Matches(e) {
			matches = append(matches, e)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Date.Equal(matches[j].Date) {
			return matches[i].Date.After(matches[j].Date)
		}
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	total := int64(len(matches))
	if q.Offset > 0 {
		if q.Offset >= len(matches) {
			return []core.Expense{}, total, nil
		}
		matches = matches[q.Offset:]
	}
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, total, nil
}

func (s *Store) GetExpense(_ context.Context, userID, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	return e, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e.ID = uuid.NewString()
	e.Date = e.Date.UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.expenses[e.ID]
	if !ok || existing.UserID != e.UserID {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	e.CreatedAt = existing.CreatedAt
	e.Date = e.Date.UTC()
	e.UpdatedAt = s.now()
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.ErrExpenseNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) CountExpensesByCategory(_ context.Context, userID, categoryID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.expenses {
		if e.UserID == userID && e.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

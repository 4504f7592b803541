package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

// CategoryService enforces the per-user category rules on top of storage.
type CategoryService struct {
	categories storage.Categories
	expenses   storage.Expenses
}

func NewCategoryService(categories storage.Categories, expenses storage.Expenses) *CategoryService {
	return &CategoryService{categories: categories, expenses: expenses}
}

// List returns the user's categories ordered by name.
func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	cats, err := s.categories.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *CategoryService) Get(ctx context.Context, userID, id string) (core.Category, error) {
	return s.categories.GetCategory(ctx, userID, id)
}

// Create adds a category. Empty color and icon fall back to the defaults.
func (s *CategoryService) Create(ctx context.Context, userID, name, color, icon string) (core.Category, error) {
	c := core.NewCategory(userID, name, color, icon)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	// The unique index on (user, name) is the real guard; this only avoids a failed insert.
	if err := s.ensureNameFree(ctx, userID, c.Name, ""); err != nil {
		return core.Category{}, err
	}

	created, err := s.categories.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}

	slog.InfoContext(ctx, "Category created", "user_id", userID, "category_id", created.ID)
	return created, nil
}

// Update applies the supplied fields of patch to the category.
func (s *CategoryService) Update(ctx context.Context, userID, id string, patch core.CategoryPatch) (core.Category, error) {
	c, err := s.categories.GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, err
	}

	renames := patch.Renames(c)
	patch.Apply(&c)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	if renames {
		if err := s.ensureNameFree(ctx, userID, c.Name, c.ID); err != nil {
			return core.Category{}, err
		}
	}

	return s.categories.UpdateCategory(ctx, c)
}

// Delete removes a category that no expense references.
func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.categories.GetCategory(ctx, userID, id); err != nil {
		return err
	}

	n, err := s.expenses.CountExpensesByCategory(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("count category expenses: %w", err)
	}
	if n > 0 {
		return &core.CategoryInUseError{Count: n}
	}

	if err := s.categories.DeleteCategory(ctx, userID, id); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Category deleted", "user_id", userID, "category_id", id)
	return nil
}

func (s *CategoryService) ensureNameFree(ctx context.Context, userID, name, selfID string) error {
	existing, err := s.categories.FindCategoryByName(ctx, userID, name)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("find category by name: %w", err)
	case existing.ID != selfID:
		return core.ErrCategoryExists
	default:
		return nil
	}
}

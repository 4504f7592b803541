package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestNewCategoryDefaults(t *testing.T) {
	c := NewCategory("u1", "  Food ", "", "")
	if c.Name != "Food" {
		t.Fatalf("expected trimmed name, got %q", c.Name)
	}
	if c.Color != DefaultCategoryColor || c.Icon != DefaultCategoryIcon {
		t.Fatalf("expected defaults, got %q %q", c.Color, c.Icon)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid category, got %v", err)
	}
}

func TestCategoryValidate(t *testing.T) {
	cases := []struct {
		name string
		c    Category
		want error
	}{
		{"ok", NewCategory("u1", "Food", "#fff", "🍕"), nil},
		{"empty name", NewCategory("u1", "   ", "", ""), ErrCategoryNameRequired},
		{"bad color", NewCategory("u1", "Food", "blue", ""), ErrInvalidColor},
		{"short hex color", NewCategory("u1", "Food", "#12345", ""), ErrInvalidColor},
		{"long hex color with alpha", NewCategory("u1", "Food", "#3b82f6cc", ""), nil},
		{"name of 100 characters", NewCategory("u1", strings.Repeat("é", 100), "", ""), nil},
		{"name too long", NewCategory("u1", strings.Repeat("a", 101), "", ""), ErrCategoryNameTooLong},
		{"no user", NewCategory("", "Food", "", ""), ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.want == nil && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCategoryPatch(t *testing.T) {
	c := NewCategory("u1", "Food", "#111111", "🍕")
	p := CategoryPatch{Name: strPtr(" Groceries "), Icon: nil}
	if !p.Renames(c) {
		t.Fatalf("expected rename")
	}
	p.Apply(&c)
	if c.Name != "Groceries" || c.Color != "#111111" || c.Icon != "🍕" {
		t.Fatalf("unexpected category after patch: %+v", c)
	}
	if (CategoryPatch{Name: strPtr("Groceries ")}).Renames(c) {
		t.Fatalf("same trimmed name must not count as rename")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		UserID:      "u1",
		Amount:      Money{Cents: 0},
		Description: "coffee",
		CategoryID:  "c1",
		Place:       "bar",
		Date:        time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := []struct {
		name   string
		mutate func(*Expense)
		want   error
	}{
		{"negative amount", func(e *Expense) { e.Amount.Cents = -1 }, ErrInvalidAmount},
		{"empty description", func(e *Expense) { e.Description = " " }, ErrEmptyDescription},
		{"no category", func(e *Expense) { e.CategoryID = "" }, ErrEmptyCategory},
		{"empty place", func(e *Expense) { e.Place = "" }, ErrEmptyPlace},
		{"zero date", func(e *Expense) { e.Date = time.Time{} }, ErrInvalidDate},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			e := good
			tc.mutate(&e)
			err := e.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected invalid input kind, got %v", err)
			}
		})
	}
}

func TestExpensePatchOnlyChangesSuppliedFields(t *testing.T) {
	e := Expense{Amount: Money{Cents: 100}, Description: "a", CategoryID: "c1", Place: "p"}
	amount := Money{Cents: 250}
	ExpensePatch{Amount: &amount, Place: strPtr(" market ")}.Apply(&e)
	if e.Amount.Cents != 250 || e.Place != "market" {
		t.Fatalf("patched fields not applied: %+v", e)
	}
	if e.Description != "a" || e.CategoryID != "c1" {
		t.Fatalf("untouched fields changed: %+v", e)
	}
}

func TestErrorKinds(t *testing.T) {
	inUse := &CategoryInUseError{Count: 3}
	if !errors.Is(inUse, ErrConflict) {
		t.Fatalf("in-use error must be a conflict")
	}
	if inUse.Error() != "Cannot delete category. It is used by 3 expense(s)." {
		t.Fatalf("unexpected message %q", inUse.Error())
	}
	if Kind(ErrCategoryNotFound) != ErrNotFound {
		t.Fatalf("expected not found kind")
	}
	if Kind(errors.New("boom")) != nil {
		t.Fatalf("plain errors have no kind")
	}
}

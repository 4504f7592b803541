package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the stores and services either is one
// of these or reports one of them through errors.Is.
var (
	ErrUnauthorized = errors.New("Unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

var (
	ErrCategoryNameRequired = newKindError(ErrInvalidInput, "Category name is required")
	ErrCategoryNameTooLong  = newKindError(ErrInvalidInput, "Category name too long (max 100 characters)")
	ErrInvalidColor         = newKindError(ErrInvalidInput, "Color must be a hex value such as #3b82f6")
	ErrEmptyIcon            = newKindError(ErrInvalidInput, "Icon cannot be empty")
	ErrMissingFields        = newKindError(ErrInvalidInput, "Missing required fields")
	ErrInvalidAmount        = newKindError(ErrInvalidInput, "Amount must be a non-negative number")
	ErrEmptyDescription     = newKindError(ErrInvalidInput, "Description cannot be empty")
	ErrEmptyCategory        = newKindError(ErrInvalidInput, "Category is required")
	ErrEmptyPlace           = newKindError(ErrInvalidInput, "Place cannot be empty")
	ErrInvalidDate          = newKindError(ErrInvalidInput, "Invalid date")
	ErrInvalidBody          = newKindError(ErrInvalidInput, "Invalid request body")
	ErrInvalidExportFormat  = newKindError(ErrInvalidInput, "Export format must be csv or xlsx")

	ErrCategoryNotFound = newKindError(ErrNotFound, "Category not found")
	ErrExpenseNotFound  = newKindError(ErrNotFound, "Expense not found")
	ErrUserNotFound     = newKindError(ErrNotFound, "User not found")

	ErrCategoryExists = newKindError(ErrConflict, "Category already exists")
)

type kindError struct {
	kind error
	msg  string
}

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }

// CategoryInUseError is returned when deleting a category that expenses still reference.
type CategoryInUseError struct {
	Count int64
}

func (e *CategoryInUseError) Error() string {
	return fmt.Sprintf("Cannot delete category. It is used by %d expense(s).", e.Count)
}

func (e *CategoryInUseError) Is(target error) bool { return target == ErrConflict }

// Kind returns the error kind err belongs to, or nil when it is an internal error.
func Kind(err error) error {
	for _, k := range []error{ErrUnauthorized, ErrInvalidInput, ErrNotFound, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

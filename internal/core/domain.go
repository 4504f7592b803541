package core

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultCategoryColor = "#3b82f6"
	DefaultCategoryIcon  = "💰"
)

type (
	User struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		Image     string    `json:"image,omitempty"`
		GoogleID  string    `json:"googleId,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	Category struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		Name      string    `json:"name"`
		Color     string    `json:"color"`
		Icon      string    `json:"icon"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	Expense struct {
		ID          string    `json:"id"`
		UserID      string    `json:"userId"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description"`
		CategoryID  string    `json:"categoryId"`
		Place       string    `json:"place"`
		Date        time.Time `json:"date"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// CategoryRef is the display subset of a category embedded in expense results.
	CategoryRef struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
		Icon  string `json:"icon"`
	}

	// ExpenseView is an expense with its category resolved.
	ExpenseView struct {
		Expense
		Category CategoryRef `json:"category"`
	}
)

// CategoryPatch holds the fields of a category update. Nil fields are left untouched.
type CategoryPatch struct {
	Name  *string
	Color *string
	Icon  *string
}

// ExpensePatch holds the fields of an expense update. Nil fields are left untouched.
type ExpensePatch struct {
	Amount      *Money
	Description *string
	CategoryID  *string
	Place       *string
	Date        *time.Time
}

var validate = validator.New()

// NewCategory trims the name and fills in the default color and icon.
func NewCategory(userID, name, color, icon string) Category {
	c := Category{
		UserID: userID,
		Name:   strings.TrimSpace(name),
		Color:  strings.TrimSpace(color),
		Icon:   strings.TrimSpace(icon),
	}
	if c.Color == "" {
		c.Color = DefaultCategoryColor
	}
	if c.Icon == "" {
		c.Icon = DefaultCategoryIcon
	}
	return c
}

func (c Category) Validate() error {
	if c.UserID == "" {
		return ErrUnauthorized
	}
	if c.Name == "" {
		return ErrCategoryNameRequired
	}
	if validate.Var(c.Name, "max=100") != nil {
		return ErrCategoryNameTooLong
	}
	if validate.Var(c.Color, "required,hexcolor") != nil {
		return ErrInvalidColor
	}
	if c.Icon == "" {
		return ErrEmptyIcon
	}
	return nil
}

// Ref returns the display attributes of the category.
func (c Category) Ref() CategoryRef {
	return CategoryRef{ID: c.ID, Name: c.Name, Color: c.Color, Icon: c.Icon}
}

// Apply copies the supplied fields onto c. Names are trimmed.
func (p CategoryPatch) Apply(c *Category) {
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Color != nil {
		c.Color = strings.TrimSpace(*p.Color)
	}
	if p.Icon != nil {
		c.Icon = strings.TrimSpace(*p.Icon)
	}
}

// Renames reports whether the patch changes the name of c.
func (p CategoryPatch) Renames(c Category) bool {
	return p.Name != nil && strings.TrimSpace(*p.Name) != c.Name
}

func (e Expense) Validate() error {
	if e.UserID == "" {
		return ErrUnauthorized
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(e.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.Place) == "" {
		return ErrEmptyPlace
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Apply copies the supplied fields onto e. Strings are trimmed.
func (p ExpensePatch) Apply(e *Expense) {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.CategoryID != nil {
		e.CategoryID = strings.TrimSpace(*p.CategoryID)
	}
	if p.Place != nil {
		e.Place = strings.TrimSpace(*p.Place)
	}
	if p.Date != nil {
		e.Date = p.Date.UTC()
	}
}

// View attaches the category display attributes to e.
func (e Expense) View(c Category) ExpenseView {
	return ExpenseView{Expense: e, Category: c.Ref()}
}

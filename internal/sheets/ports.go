// Package sheets mirrors expenses into a spreadsheet, one row per expense
// keyed by the expense id in the first column.
package sheets

import (
	"context"
	"strings"
	"time"

	"spendwise/internal/core"
)

// Header is the first row of the mirror sheet.
var Header = []string{"ID", "User", "Date", "Description", "Category", "Place", "Amount"}

// Row is the spreadsheet representation of one expense.
type Row struct {
	ExpenseID   string
	UserID      string
	Date        time.Time
	Description string
	Category    string
	Place       string
	Amount      core.Money
}

func RowFromExpense(v core.ExpenseView) Row {
	return Row{
		ExpenseID:   v.ID,
		UserID:      v.UserID,
		Date:        v.Date,
		Description: v.Description,
		Category:    v.Category.Name,
		Place:       v.Place,
		Amount:      v.Amount,
	}
}

// Values renders the row in Header order. Amounts are numbers so the sheet
// can sum them; free text is passed through EscapeFormula.
func (r Row) Values() []any {
	return []any{
		r.ExpenseID,
		r.UserID,
		r.Date.UTC().Format("2006-01-02"),
		EscapeFormula(r.Description),
		EscapeFormula(r.Category),
		EscapeFormula(r.Place),
		r.Amount.Float(),
	}
}

// EscapeFormula prefixes text that a spreadsheet would evaluate as a formula
// with a single quote, so it is shown as typed.
func EscapeFormula(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// ExpenseMirror is the outbound port of the sync worker.
type ExpenseMirror interface {
	// Upsert writes the row, replacing an existing row with the same expense id.
	Upsert(ctx context.Context, row Row) error
	// Remove clears the row of expenseID. Missing rows are not an error.
	Remove(ctx context.Context, expenseID string) error
}

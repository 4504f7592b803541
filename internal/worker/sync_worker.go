// Package worker consumes expense events and keeps the spreadsheet mirror in
// step with storage.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/sheets"
	"spendwise/internal/storage"
)

// SyncWorker mirrors expenses into a spreadsheet.
type SyncWorker struct {
	expenses   storage.Expenses
	categories storage.Categories
	mirror     sheets.ExpenseMirror
}

func NewSyncWorker(expenses storage.Expenses, categories storage.Categories, mirror sheets.ExpenseMirror) *SyncWorker {
	return &SyncWorker{
		expenses:   expenses,
		categories: categories,
		mirror:     mirror,
	}
}

// HandleEvent applies one expense event to the mirror. Events only carry ids,
// so created and updated both re-read the current state of the expense. An
// expense that no longer exists is removed from the mirror.
func (w *SyncWorker) HandleEvent(ctx context.Context, evt amqp.ExpenseEvent) error {
	logger := slog.With(
		log.FieldComponent, log.ComponentWorker,
		log.FieldEventType, string(evt.Type),
		log.FieldExpenseID, evt.ExpenseID,
		log.FieldUserID, evt.UserID)

	switch evt.Type {
	case amqp.ExpenseCreated, amqp.ExpenseUpdated:
		e, err := w.expenses.GetExpense(ctx, evt.UserID, evt.ExpenseID)
		if errors.Is(err, core.ErrNotFound) {
			logger.InfoContext(ctx, "Expense is gone, removing mirrored row")
			return w.remove(ctx, evt.ExpenseID)
		}
		if err != nil {
			return fmt.Errorf("load expense %s: %w", evt.ExpenseID, err)
		}

		c, err := w.categories.GetCategory(ctx, evt.UserID, e.CategoryID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("load category %s: %w", e.CategoryID, err)
		}

		if err := w.mirror.Upsert(ctx, sheets.RowFromExpense(e.View(c))); err != nil {
			return fmt.Errorf("mirror expense %s: %w", evt.ExpenseID, err)
		}
		logger.InfoContext(ctx, "Mirrored expense")
		return nil

	case amqp.ExpenseDeleted:
		if err := w.remove(ctx, evt.ExpenseID); err != nil {
			return err
		}
		logger.InfoContext(ctx, "Removed mirrored expense")
		return nil

	default:
		logger.WarnContext(ctx, "Ignoring unknown event type")
		return nil
	}
}

func (w *SyncWorker) remove(ctx context.Context, expenseID string) error {
	if err := w.mirror.Remove(ctx, expenseID); err != nil {
		return fmt.Errorf("remove mirrored expense %s: %w", expenseID, err)
	}
	return nil
}

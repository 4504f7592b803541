// Package memory is an in-process ExpenseMirror for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"spendwise/internal/sheets"
)

type Mirror struct {
	mu   sync.Mutex
	rows map[string]sheets.Row
}

var _ sheets.ExpenseMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: make(map[string]sheets.Row)}
}

func (m *Mirror) Upsert(_ context.Context, row sheets.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[row.ExpenseID] = row
	return nil
}

func (m *Mirror) Remove(_ context.Context, expenseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, expenseID)
	return nil
}

// Row returns the mirrored row of expenseID.
func (m *Mirror) Row(expenseID string) (sheets.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[expenseID]
	return r, ok
}

// Rows returns every mirrored row ordered by expense id.
func (m *Mirror) Rows() []sheets.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sheets.Row, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpenseID < out[j].ExpenseID })
	return out
}

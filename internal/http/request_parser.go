package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/services"
)

const dateLayout = "2006-01-02"

// parseDate accepts YYYY-MM-DD or RFC 3339. Date-only values are midnight UTC.
func parseDate(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d, true, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d.UTC(), false, nil
	}
	return time.Time{}, false, core.ErrInvalidDate
}

// parseDateRange reads startDate and endDate. The range is only applied when
// both are present; a date-only endDate covers that whole day.
func parseDateRange(q url.Values) (from, to *time.Time, err error) {
	start := strings.TrimSpace(q.Get("startDate"))
	end := strings.TrimSpace(q.Get("endDate"))

	var startT, endT time.Time
	var endDateOnly bool
	if start != "" {
		if startT, _, err = parseDate(start); err != nil {
			return nil, nil, err
		}
	}
	if end != "" {
		if endT, endDateOnly, err = parseDate(end); err != nil {
			return nil, nil, err
		}
	}
	if start == "" || end == "" {
		return nil, nil, nil
	}

	if endDateOnly {
		endT = endT.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return &startT, &endT, nil
}

// parseListFilter reads the expense listing query. Unparseable page and
// limit values fall back to their defaults.
func parseListFilter(q url.Values) (services.ListFilter, error) {
	from, to, err := parseDateRange(q)
	if err != nil {
		return services.ListFilter{}, err
	}
	return services.ListFilter{
		From:       from,
		To:         to,
		CategoryID: strings.TrimSpace(q.Get("category")),
		Page:       atoiOr(q.Get("page"), 1),
		Limit:      atoiOr(q.Get("limit"), 0),
	}, nil
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

type categoryRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=100"`
	Color *string `json:"color" binding:"omitempty,hexcolor"`
	Icon  *string `json:"icon"`
}

func (r categoryRequest) patch() core.CategoryPatch {
	return core.CategoryPatch{Name: r.Name, Color: r.Color, Icon: r.Icon}
}

type expenseRequest struct {
	Amount      *core.Money `json:"amount"`
	Description *string     `json:"description"`
	Category    *string     `json:"category"`
	Place       *string     `json:"place"`
	Date        *string     `json:"date"`
}

// date parses the optional date. A blank date counts as not supplied.
func (r expenseRequest) date() (*time.Time, error) {
	if r.Date == nil || strings.TrimSpace(*r.Date) == "" {
		return nil, nil
	}
	d, _, err := parseDate(*r.Date)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r expenseRequest) newExpense() (services.NewExpense, error) {
	date, err := r.date()
	if err != nil {
		return services.NewExpense{}, err
	}
	return services.NewExpense{
		Amount:      r.Amount,
		Description: deref(r.Description),
		CategoryID:  deref(r.Category),
		Place:       deref(r.Place),
		Date:        date,
	}, nil
}

func (r expenseRequest) patch() (core.ExpensePatch, error) {
	date, err := r.date()
	if err != nil {
		return core.ExpensePatch{}, err
	}
	return core.ExpensePatch{
		Amount:      r.Amount,
		Description: r.Description,
		CategoryID:  r.Category,
		Place:       r.Place,
		Date:        date,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

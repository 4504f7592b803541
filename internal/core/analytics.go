package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TopPlacesLimit caps the number of places returned by TopPlaces.
const TopPlacesLimit = 10

type (
	Summary struct {
		Total   Money   `json:"total"`
		Count   int     `json:"count"`
		Average float64 `json:"average"`
	}

	// CategoryTotal aggregates the expenses of one category.
	CategoryTotal struct {
		CategoryRef
		Total Money `json:"total"`
		Count int   `json:"count"`
	}

	// MonthTotal aggregates the expenses of one calendar month (UTC).
	MonthTotal struct {
		Year  int   `json:"year"`
		Month int   `json:"month"`
		Total Money `json:"total"`
		Count int   `json:"count"`
	}

	PlaceTotal struct {
		Place string `json:"place"`
		Total Money  `json:"total"`
		Count int    `json:"count"`
	}

	Analytics struct {
		Summary           Summary         `json:"summary"`
		CategoryBreakdown []CategoryTotal `json:"categoryBreakdown"`
		MonthlyTrend      []MonthTotal    `json:"monthlyTrend"`
		TopPlaces         []PlaceTotal    `json:"topPlaces"`
	}
)

// Analyze builds the composite analytics result. inRange holds the expenses
// matching the caller's filter; recent holds the expenses used for the
// monthly trend, which always covers the year before now.
func Analyze(inRange, recent []Expense, categories []Category, now time.Time) Analytics {
	return Analytics{
		Summary:           Summarize(inRange),
		CategoryBreakdown: BreakdownByCategory(inRange, categories),
		MonthlyTrend:      MonthlyTrend(recent, now),
		TopPlaces:         TopPlaces(inRange, TopPlacesLimit),
	}
}

// TrendWindow returns the inclusive bounds of the monthly trend.
func TrendWindow(now time.Time) (from, to time.Time) {
	now = now.UTC()
	return now.AddDate(-1, 0, 0), now
}

func Summarize(expenses []Expense) Summary {
	var s Summary
	for _, e := range expenses {
		s.Total.Cents += e.Amount.Cents
		s.Count++
	}
	if s.Count > 0 {
		s.Average = s.Total.Decimal().Div(decimal.NewFromInt(int64(s.Count))).InexactFloat64()
	}
	return s
}

// BreakdownByCategory groups expenses by category, sorted by total descending.
// Expenses whose category is not in categories are skipped.
func BreakdownByCategory(expenses []Expense, categories []Category) []CategoryTotal {
	byID := make(map[string]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	groups := make(map[string]*CategoryTotal)
	for _, e := range expenses {
		c, ok := byID[e.CategoryID]
		if !ok {
			continue
		}
		g, ok := groups[c.ID]
		if !ok {
			g = &CategoryTotal{CategoryRef: c.Ref()}
			groups[c.ID] = g
		}
		g.Total.Cents += e.Amount.Cents
		g.Count++
	}

	out := make([]CategoryTotal, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MonthlyTrend groups the expenses dated within TrendWindow(now) by year and
// month, oldest first.
func MonthlyTrend(expenses []Expense, now time.Time) []MonthTotal {
	from, to := TrendWindow(now)

	type key struct{ year, month int }
	groups := make(map[key]*MonthTotal)
	for _, e := range expenses {
		d := e.Date.UTC()
		if d.Before(from) || d.After(to) {
			continue
		}
		k := key{d.Year(), int(d.Month())}
		g, ok := groups[k]
		if !ok {
			g = &MonthTotal{Year: k.year, Month: k.month}
			groups[k] = g
		}
		g.Total.Cents += e.Amount.Cents
		g.Count++
	}

	out := make([]MonthTotal, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// TopPlaces groups expenses by place and returns the n largest by total.
func TopPlaces(expenses []Expense, n int) []PlaceTotal {
	groups := make(map[string]*PlaceTotal)
	for _, e := range expenses {
		g, ok := groups[e.Place]
		if !ok {
			g = &PlaceTotal{Place: e.Place}
			groups[e.Place] = g
		}
		g.Total.Cents += e.Amount.Cents
		g.Count++
	}

	out := make([]PlaceTotal, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Place < out[j].Place
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

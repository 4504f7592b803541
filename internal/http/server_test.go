package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/services"
	"spendwise/internal/storage/memory"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
	tokens  map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := memory.New()
	sessions, err := auth.NewSessions("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	router := NewRouter(Deps{
		Categories:  services.NewCategoryService(store, store),
		Expenses:    services.NewExpenseService(store, store, nil),
		Analytics:   services.NewAnalyticsService(store, store),
		Auth:        auth.NewHandler(nil, store, sessions, false),
		RequireUser: auth.RequireUser(sessions, store),
		Store:       store,
		Environment: "test",
		EnvPresence: map[string]bool{"SESSION_SECRET": true, "MONGODB_URI": false},
	})

	ts := &testServer{t: t, handler: router, store: store, tokens: map[string]string{}}
	for _, name := range []string{"alice", "bob"} {
		u, err := store.UpsertUser(ctx, core.User{Name: name, Email: name + "@example.com"})
		require.NoError(t, err)
		token, _, err := sessions.Issue(u.ID)
		require.NoError(t, err)
		ts.tokens[name] = token
	}
	return ts
}

func (ts *testServer) do(user, method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[user])
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

func (ts *testServer) createCategory(user, name string) core.Category {
	ts.t.Helper()
	w := ts.do(user, http.MethodPost, "/api/categories", map[string]string{"name": name})
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[core.Category](ts.t, w)
}

func (ts *testServer) createExpense(user string, body map[string]any) core.ExpenseView {
	ts.t.Helper()
	w := ts.do(user, http.MethodPost, "/api/expenses", body)
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[core.ExpenseView](ts.t, w)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		w := ts.do("", http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := ts.do("", http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status       string          `json:"status"`
		Environment  string          `json:"environment"`
		EnvVariables map[string]bool `json:"envVariables"`
		Timestamp    time.Time       `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test", body.Environment)
	assert.True(t, body.EnvVariables["SESSION_SECRET"])
	assert.False(t, body.EnvVariables["MONGODB_URI"])
	assert.False(t, body.Timestamp.IsZero())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestReadyzUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{Store: failingPinger{}})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPanicIsRecoveredAsJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r := NewRouter(Deps{})
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Request-ID", "req-panic-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
	assert.Equal(t, "req-panic-1", w.Header().Get("X-Request-ID"))
	assert.Contains(t, logs.String(), `"msg":"Panic recovered"`)
	assert.Contains(t, logs.String(), `"request_id":"req-panic-1"`)
	assert.Contains(t, logs.String(), `"panic":"kaboom"`)
}

func TestUnauthenticated(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/categories", "/api/expenses", "/api/analytics", "/api/expenses/export"} {
		w := ts.do("", http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, "Unauthorized", errorOf(t, w))
	}
}

func TestCategoryEndpoints(t *testing.T) {
	ts := newTestServer(t)

	food := ts.createCategory("alice", " Food ")
	assert.Equal(t, "Food", food.Name)
	assert.Equal(t, core.DefaultCategoryColor, food.Color)
	ts.createCategory("alice", "Travel")

	t.Run("duplicate", func(t *testing.T) {
		w := ts.do("alice", http.MethodPost, "/api/categories", map[string]string{"name": "Food"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "Category already exists", errorOf(t, w))
	})

	t.Run("missing name", func(t *testing.T) {
		w := ts.do("alice", http.MethodPost, "/api/categories", map[string]string{"color": "#ffffff"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Category name is required", errorOf(t, w))
	})

	t.Run("field rules", func(t *testing.T) {
		tests := []struct {
			name   string
			method string
			path   string
			body   map[string]string
			want   string
		}{
			{"create bad color", http.MethodPost, "/api/categories", map[string]string{"name": "Gym", "color": "blue"}, "Color must be a hex value such as #3b82f6"},
			{"create long name", http.MethodPost, "/api/categories", map[string]string{"name": strings.Repeat("x", 101)}, "Category name too long (max 100 characters)"},
			{"update bad color", http.MethodPut, "/api/categories/" + food.ID, map[string]string{"color": "#12"}, "Color must be a hex value such as #3b82f6"},
			{"update long name", http.MethodPut, "/api/categories/" + food.ID, map[string]string{"name": strings.Repeat("x", 101)}, "Category name too long (max 100 characters)"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := ts.do("alice", tt.method, tt.path, tt.body)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Equal(t, tt.want, errorOf(t, w))
			})
		}

		w := ts.do("alice", http.MethodPost, "/api/categories", map[string]string{"name": "Gym", "color": "#10b981"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		gym := decode[core.Category](t, w)
		assert.Equal(t, "#10b981", gym.Color)
		w = ts.do("alice", http.MethodDelete, "/api/categories/"+gym.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := ts.do("alice", http.MethodPost, "/api/categories", "{not json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", errorOf(t, w))
	})

	t.Run("list is per user and sorted", func(t *testing.T) {
		w := ts.do("alice", http.MethodGet, "/api/categories", nil)
		require.Equal(t, http.StatusOK, w.Code)
		cats := decode[[]core.Category](t, w)
		require.Len(t, cats, 2)
		assert.Equal(t, "Food", cats[0].Name)
		assert.Equal(t, "Travel", cats[1].Name)

		w = ts.do("bob", http.MethodGet, "/api/categories", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("update", func(t *testing.T) {
		w := ts.do("alice", http.MethodPut, "/api/categories/"+food.ID, map[string]string{"icon": "🍕"})
		require.Equal(t, http.StatusOK, w.Code)
		got := decode[core.Category](t, w)
		assert.Equal(t, "🍕", got.Icon)
		assert.Equal(t, "Food", got.Name)

		w = ts.do("alice", http.MethodPut, "/api/categories/"+food.ID, map[string]string{"name": "Travel"})
		assert.Equal(t, http.StatusConflict, w.Code)

		w = ts.do("bob", http.MethodPut, "/api/categories/"+food.ID, map[string]string{"name": "Mine"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Category not found", errorOf(t, w))
	})

	t.Run("delete in use", func(t *testing.T) {
		ts.createExpense("alice", map[string]any{"amount": 5, "description": "Pizza", "category": food.ID, "place": "Napoli"})
		w := ts.do("alice", http.MethodDelete, "/api/categories/"+food.ID, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "Cannot delete category. It is used by 1 expense(s).", errorOf(t, w))
	})

	t.Run("delete", func(t *testing.T) {
		travel := ts.createCategory("alice", "Gifts")
		w := ts.do("alice", http.MethodDelete, "/api/categories/"+travel.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, decode[map[string]string](t, w)["message"])

		w = ts.do("alice", http.MethodDelete, "/api/categories/"+travel.ID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestExpenseEndpoints(t *testing.T) {
	ts := newTestServer(t)
	food := ts.createCategory("alice", "Food")
	travel := ts.createCategory("alice", "Travel")
	bobs := ts.createCategory("bob", "Food")

	created := ts.createExpense("alice", map[string]any{
		"amount":      "12,50",
		"description": "Groceries",
		"category":    food.ID,
		"place":       "Market",
		"date":        "2024-03-15",
	})
	assert.Equal(t, int64(1250), created.Amount.Cents)
	assert.Equal(t, "Food", created.Category.Name)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), created.Date)

	t.Run("amount rendered as number", func(t *testing.T) {
		w := ts.do("alice", http.MethodGet, "/api/expenses/"+created.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"amount":12.50`)
		assert.Contains(t, w.Body.String(), `"category":{"id":"`+food.ID+`"`)
	})

	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
		wantErr  string
	}{
		{"missing amount", map[string]any{"description": "x", "category": food.ID, "place": "p"}, http.StatusBadRequest, "Missing required fields"},
		{"null amount", map[string]any{"amount": nil, "description": "x", "category": food.ID, "place": "p"}, http.StatusBadRequest, "Missing required fields"},
		{"negative amount", map[string]any{"amount": -1, "description": "x", "category": food.ID, "place": "p"}, http.StatusBadRequest, "Amount must be a non-negative number"},
		{"garbage amount", map[string]any{"amount": "ten", "description": "x", "category": food.ID, "place": "p"}, http.StatusBadRequest, "Amount must be a non-negative number"},
		{"amount too large", map[string]any{"amount": "92233720368547758.07", "description": "x", "category": food.ID, "place": "p"}, http.StatusBadRequest, "Amount must be a non-negative number"},
		{"bad date", map[string]any{"amount": 1, "description": "x", "category": food.ID, "place": "p", "date": "15/03/2024"}, http.StatusBadRequest, "Invalid date"},
		{"other user's category", map[string]any{"amount": 1, "description": "x", "category": bobs.ID, "place": "p"}, http.StatusNotFound, "Category not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do("alice", http.MethodPost, "/api/expenses", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.wantErr, errorOf(t, w))
		})
	}

	t.Run("update", func(t *testing.T) {
		w := ts.do("alice", http.MethodPut, "/api/expenses/"+created.ID, map[string]any{"category": travel.ID, "amount": 20})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := decode[core.ExpenseView](t, w)
		assert.Equal(t, "Travel", got.Category.Name)
		assert.Equal(t, int64(2000), got.Amount.Cents)
		assert.Equal(t, "Groceries", got.Description)
	})

	t.Run("update to missing category leaves expense unchanged", func(t *testing.T) {
		w := ts.do("alice", http.MethodPut, "/api/expenses/"+created.ID, map[string]any{"category": "does-not-exist", "place": "Elsewhere"})
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = ts.do("alice", http.MethodGet, "/api/expenses/"+created.ID, nil)
		got := decode[core.ExpenseView](t, w)
		assert.Equal(t, travel.ID, got.CategoryID)
		assert.Equal(t, "Market", got.Place)
	})

	t.Run("other user cannot see or touch", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, ts.do("bob", http.MethodGet, "/api/expenses/"+created.ID, nil).Code)
		assert.Equal(t, http.StatusNotFound, ts.do("bob", http.MethodPut, "/api/expenses/"+created.ID, map[string]any{"place": "x"}).Code)
		assert.Equal(t, http.StatusNotFound, ts.do("bob", http.MethodDelete, "/api/expenses/"+created.ID, nil).Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := ts.do("alice", http.MethodDelete, "/api/expenses/"+created.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, http.StatusNotFound, ts.do("alice", http.MethodGet, "/api/expenses/"+created.ID, nil).Code)
	})
}

func TestListExpenses(t *testing.T) {
	ts := newTestServer(t)
	food := ts.createCategory("alice", "Food")
	travel := ts.createCategory("alice", "Travel")

	for i, d := range []string{"2024-01-05", "2024-01-20", "2024-02-10", "2024-02-29T18:00:00Z"} {
		cat := food.ID
		if i == 3 {
			cat = travel.ID
		}
		ts.createExpense("alice", map[string]any{"amount": 10, "description": "item", "category": cat, "place": "p", "date": d})
	}

	type page struct {
		Expenses   []core.ExpenseView  `json:"expenses"`
		Pagination services.Pagination `json:"pagination"`
	}

	tests := []struct {
		name      string
		query     string
		wantTotal int64
		wantLen   int
		wantPages int64
	}{
		{"all", "", 4, 4, 1},
		{"paged", "?page=2&limit=3", 4, 1, 2},
		{"category", "?category=" + travel.ID, 1, 1, 1},
		{"date range with whole end day", "?startDate=2024-02-01&endDate=2024-02-29", 2, 2, 1},
		{"only start ignored", "?startDate=2024-02-01", 4, 4, 1},
		{"garbage page falls back", "?page=abc", 4, 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do("alice", http.MethodGet, "/api/expenses"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			p := decode[page](t, w)
			assert.Equal(t, tt.wantTotal, p.Pagination.Total)
			assert.Len(t, p.Expenses, tt.wantLen)
			assert.Equal(t, tt.wantPages, p.Pagination.Pages)
		})
	}

	w := ts.do("alice", http.MethodGet, "/api/expenses?startDate=yesterday&endDate=2024-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do("alice", http.MethodGet, "/api/expenses", nil)
	p := decode[page](t, w)
	require.Len(t, p.Expenses, 4)
	assert.Equal(t, "Travel", p.Expenses[0].Category.Name, "newest first")
}

func TestAnalyticsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	food := ts.createCategory("alice", "Food")
	now := time.Now().UTC()
	first := now.AddDate(0, -1, 0).Format(time.RFC3339)
	second := now.Format(time.RFC3339)
	ts.createExpense("alice", map[string]any{"amount": 10, "description": "a", "category": food.ID, "place": "Market", "date": first})
	ts.createExpense("alice", map[string]any{"amount": 20, "description": "b", "category": food.ID, "place": "Market", "date": second})

	w := ts.do("alice", http.MethodGet, "/api/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	a := decode[core.Analytics](t, w)
	assert.Equal(t, int64(3000), a.Summary.Total.Cents)
	assert.Equal(t, 2, a.Summary.Count)
	assert.InDelta(t, 15.0, a.Summary.Average, 0.001)
	require.Len(t, a.CategoryBreakdown, 1)
	assert.Equal(t, "Food", a.CategoryBreakdown[0].Name)
	require.Len(t, a.TopPlaces, 1)
	assert.Equal(t, "Market", a.TopPlaces[0].Place)

	w = ts.do("alice", http.MethodGet, "/api/analytics?startDate=2000-01-01&endDate=2000-12-31", nil)
	require.Equal(t, http.StatusOK, w.Code)
	a = decode[core.Analytics](t, w)
	assert.Equal(t, 0, a.Summary.Count)
	assert.NotEmpty(t, a.MonthlyTrend, "trend ignores the requested range")

	w = ts.do("bob", http.MethodGet, "/api/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	a = decode[core.Analytics](t, w)
	assert.Equal(t, 0, a.Summary.Count)
}

func TestExportEndpoint(t *testing.T) {
	ts := newTestServer(t)
	food := ts.createCategory("alice", "Food")
	ts.createExpense("alice", map[string]any{"amount": "3.5", "description": "Coffee, large", "category": food.ID, "place": "Bar", "date": "2024-05-01"})

	w := ts.do("alice", http.MethodGet, "/api/expenses/export?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "\ufeffDate,Description,Category,Place,Amount\n"))
	assert.Contains(t, body, `2024-05-01,"Coffee, large",Food,Bar,3.50`)

	w = ts.do("alice", http.MethodGet, "/api/expenses/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentTypeXLSX, w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	w = ts.do("alice", http.MethodGet, "/api/expenses/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

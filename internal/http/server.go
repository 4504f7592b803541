// Package http exposes the JSON API under /api on a gin engine.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
	"spendwise/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the router needs. Auth may be nil, in which case the
// sign-in routes are not mounted. Without RequireUser every private route
// answers 401.
type Deps struct {
	Categories  *services.CategoryService
	Expenses    *services.ExpenseService
	Analytics   *services.AnalyticsService
	Auth        *auth.Handler
	RequireUser gin.HandlerFunc
	Store       Pinger
	Logger      *log.Logger
	Environment string
	EnvPresence map[string]bool
}

type Server struct {
	http.Server
}

// NewServer builds the router and returns a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	return &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: NewRouter(deps),
		},
	}
}

// NewRouter assembles the gin engine with middleware and routes.
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}

	requireUser := deps.RequireUser
	if requireUser == nil {
		requireUser = func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.ErrUnauthorized.Error()})
		}
	}

	r := gin.New()
	r.Use(
		recovery(),
		trace.Middleware(),
		log.Middleware(logger),
		security.Headers(security.DefaultHeadersConfig()),
	)

	h := &handlers{
		categories:  deps.Categories,
		expenses:    deps.Expenses,
		analytics:   deps.Analytics,
		store:       deps.Store,
		environment: deps.Environment,
		envPresence: deps.EnvPresence,
	}

	r.GET("/healthz", h.healthz)
	r.GET("/readyz", h.readyz)

	api := r.Group("/api", security.NoStore())
	api.GET("/health", h.health)
	if deps.Auth != nil {
		deps.Auth.Register(api, requireUser)
	}

	private := api.Group("", requireUser)
	private.GET("/categories", h.listCategories)
	private.POST("/categories", h.createCategory)
	private.PUT("/categories/:id", h.updateCategory)
	private.DELETE("/categories/:id", h.deleteCategory)

	private.GET("/expenses", h.listExpenses)
	private.GET("/expenses/export", h.exportExpenses)
	private.POST("/expenses", h.createExpense)
	private.GET("/expenses/:id", h.getExpense)
	private.PUT("/expenses/:id", h.updateExpense)
	private.DELETE("/expenses/:id", h.deleteExpense)

	private.GET("/analytics", h.getAnalytics)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return r
}

type handlers struct {
	categories  *services.CategoryService
	expenses    *services.ExpenseService
	analytics   *services.AnalyticsService
	store       Pinger
	environment string
	envPresence map[string]bool
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"spendwise/internal/log"
)

func (h *handlers) healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// readyz answers 503 until the store responds to a ping.
func (h *handlers) readyz(c *gin.Context) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "Readiness check failed",
				log.FieldComponent, log.ComponentHTTP,
				log.FieldError, err)
			c.String(http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	c.String(http.StatusOK, "ready")
}

func (h *handlers) health(c *gin.Context) {
	presence := h.envPresence
	if presence == nil {
		presence = map[string]bool{}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"environment":  h.environment,
		"envVariables": presence,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spendwise/internal/auth"
)

func (h *handlers) getAnalytics(c *gin.Context) {
	from, to, err := parseDateRange(c.Request.URL.Query())
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.analytics.Compute(c.Request.Context(), auth.UserID(c), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"spendwise/internal/core"
	"spendwise/internal/log"
)

// writeError maps err to a status code and writes {"error": message}.
// Internal errors are logged and hidden behind a generic message.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "Request failed",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldRequestID, c.GetString(log.RequestIDKey),
			log.FieldUserID, c.GetString(log.UserIDKey),
			log.FieldPath, c.Request.URL.Path,
			log.FieldError, err)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// recovery turns a handler panic into the same 500 body writeError uses and
// logs it through slog with the request id.
func recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		slog.ErrorContext(c.Request.Context(), "Panic recovered",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldRequestID, c.GetString(log.RequestIDKey),
			log.FieldMethod, c.Request.Method,
			log.FieldPath, c.Request.URL.Path,
			"panic", recovered,
			"stack", string(debug.Stack()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}

func statusFor(err error) int {
	switch core.Kind(err) {
	case core.ErrUnauthorized:
		return http.StatusUnauthorized
	case core.ErrInvalidInput:
		return http.StatusBadRequest
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeMessage answers a successful mutation that has no resource to return.
func writeMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// bindJSON decodes and validates the request body. Failed binding rules
// map to the matching field error. Other decoding failures, apart from a
// rejected field value, become core.ErrInvalidBody.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrInvalidInput) {
		return err
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fieldError(verrs[0])
	}
	return core.ErrInvalidBody
}

func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "hexcolor":
		return core.ErrInvalidColor
	case "max":
		if fe.Field() == "Name" {
			return core.ErrCategoryNameTooLong
		}
	}
	return core.ErrInvalidBody
}

package log

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key under which the auth middleware stores the caller.
const UserIDKey = "userID"

// RequestIDKey is the gin context key holding the request id set by the trace middleware.
const RequestIDKey = "requestID"

// Middleware attaches logger to each request context and logs the outcome
// once the handler chain has finished. 4xx responses log at warn, 5xx at error.
func Middleware(logger *Logger) gin.HandlerFunc {
	httpLogger := logger.WithComponent(ComponentHTTP)
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(WithContext(c.Request.Context(), httpLogger))

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		fields := NewFields().
			WithHTTPRequest(c.Request.Method, c.Request.URL.Path, c.Request.URL.RawQuery, c.Request.UserAgent()).
			WithHTTPResponse(status, time.Since(start).Milliseconds()).
			WithClientIP(c.ClientIP()).
			WithRequestID(c.GetString(RequestIDKey)).
			WithUser(c.GetString(UserIDKey))
		if len(c.Errors) > 0 {
			fields[FieldError] = c.Errors.String()
		}

		httpLogger.Logger.Log(c.Request.Context(), level, "HTTP request completed", fields.ToSlice()...)
	}
}

package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/storage"
)

const (
	// SessionCookie holds the session token for browser clients.
	SessionCookie = "spendwise_session"

	userKey = "user"
)

// RequireUser rejects requests without a valid session for an existing user.
// On success the user id is available through UserID.
func RequireUser(sessions *Sessions, users storage.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			abortUnauthorized(c)
			return
		}

		userID, err := sessions.Parse(token)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				abortUnauthorized(c)
				return
			}
			slog.ErrorContext(c.Request.Context(), "Failed to load session user",
				log.FieldComponent, log.ComponentAuth,
				log.FieldUserID, userID,
				log.FieldError, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.Set(log.UserIDKey, user.ID)
		c.Set(userKey, user)
		c.Next()
	}
}

// UserID returns the id of the signed-in user, or "" outside RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(log.UserIDKey)
}

// CurrentUser returns the user loaded by RequireUser.
func CurrentUser(c *gin.Context) (core.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return core.User{}, false
	}
	u, ok := v.(core.User)
	return u, ok
}

func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.ErrUnauthorized.Error()})
}

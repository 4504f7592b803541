package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/storage"
)

const (
	stateCookie = "spendwise_oauth_state"
	stateMaxAge = 600
	cookiePath  = "/"
)

// Handler serves the sign-in routes.
type Handler struct {
	provider IdentityProvider
	users    storage.Users
	sessions *Sessions
	secure   bool
	// AfterLogin is where the browser lands once signed in.
	AfterLogin string
}

// NewHandler wires the sign-in routes. provider may be nil when Google
// sign-in is not configured; login then answers 503. secure marks cookies
// as HTTPS-only.
func NewHandler(provider IdentityProvider, users storage.Users, sessions *Sessions, secure bool) *Handler {
	return &Handler{
		provider:   provider,
		users:      users,
		sessions:   sessions,
		secure:     secure,
		AfterLogin: "/",
	}
}

// Register mounts the public sign-in routes and the session routes, which
// need a signed-in user.
func (h *Handler) Register(rg *gin.RouterGroup, requireUser gin.HandlerFunc) {
	g := rg.Group("/auth")
	g.GET("/google/login", h.Login)
	g.GET("/google/callback", h.Callback)
	g.GET("/session", requireUser, h.Session)
	g.POST("/logout", h.Logout)
}

// Login redirects the browser to Google with a fresh anti-forgery state.
func (h *Handler) Login(c *gin.Context) {
	if h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign-in is not configured"})
		return
	}

	state, err := newState()
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to create OAuth state",
			log.FieldComponent, log.ComponentAuth,
			log.FieldError, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, stateMaxAge, cookiePath, "", h.secure, true)
	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

// Callback finishes the Google flow: the user is created or refreshed by
// email and receives a session cookie.
func (h *Handler) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	if h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign-in is not configured"})
		return
	}

	expected, err := c.Cookie(stateCookie)
	got := c.Query("state")
	if err != nil || got == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrUnauthorized.Error()})
		return
	}
	c.SetCookie(stateCookie, "", -1, cookiePath, "", h.secure, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrUnauthorized.Error()})
		return
	}

	profile, err := h.provider.Exchange(ctx, code)
	if err != nil || profile.Email == "" {
		slog.WarnContext(ctx, "Google sign-in failed",
			log.FieldComponent, log.ComponentAuth,
			log.FieldError, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrUnauthorized.Error()})
		return
	}

	user, err := h.users.UpsertUser(ctx, core.User{
		Name:     profile.Name,
		Email:    profile.Email,
		Image:    profile.Picture,
		GoogleID: profile.Subject,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to save signed-in user",
			log.FieldComponent, log.ComponentAuth,
			log.FieldError, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := h.startSession(c, user.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to issue session",
			log.FieldComponent, log.ComponentAuth,
			log.FieldUserID, user.ID,
			log.FieldError, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	slog.InfoContext(ctx, "User signed in",
		log.FieldComponent, log.ComponentAuth,
		log.FieldUserID, user.ID)
	c.Redirect(http.StatusFound, h.AfterLogin)
}

// Session returns the signed-in user.
func (h *Handler) Session(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrUnauthorized.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"expires": h.sessions.TTL().String(),
	})
}

// Logout clears the session cookie. Bearer tokens stay valid until they expire.
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, cookiePath, "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

func (h *Handler) startSession(c *gin.Context, userID string) error {
	token, _, err := h.sessions.Issue(userID)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(h.sessions.TTL().Seconds()), cookiePath, "", h.secure, true)
	return nil
}

func newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"time"

	"spendwise/internal/auth"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	apphttp "spendwise/internal/http"
	"spendwise/internal/log"
	"spendwise/internal/services"
)

func main() {
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	cli.MustValidate(logger, cfg.Validate)

	be := cli.OpenBackend(context.Background(), logger, cfg, true)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("SESSION_SECRET is not set, using a random secret; sessions will not survive a restart")
	}
	sessions, err := auth.NewSessions(secret, cfg.SessionTTL)
	if err != nil {
		logger.Error("Failed to initialize sessions", "error", err)
		os.Exit(1)
	}

	var provider auth.IdentityProvider
	if cfg.GoogleSignInEnabled() {
		provider = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)
		logger.Info("Google sign-in enabled", "redirect_url", cfg.OAuthRedirectURL)
	} else {
		logger.Warn("Google sign-in disabled - no GOOGLE_CLIENT_ID provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Categories:  services.NewCategoryService(be.Store, be.Store),
		Expenses:    services.NewExpenseService(be.Store, be.Store, be.Publisher),
		Analytics:   services.NewAnalyticsService(be.Store, be.Store),
		Auth:        auth.NewHandler(provider, be.Store, sessions, cfg.IsProduction()),
		RequireUser: auth.RequireUser(sessions, be.Store),
		Store:       be.Store,
		Logger:      logger,
		Environment: cfg.AppEnv,
		EnvPresence: cfg.EnvPresence(),
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx := cli.GracefulShutdown(logger, 30*time.Second, srv.Shutdown)

	logger.Info("Starting spendwise server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"environment", cfg.AppEnv,
		"events_enabled", be.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Package cli holds the start-up steps shared by cmd/spendwise and
// cmd/spendwise-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spendwise/internal/backend"
	"spendwise/internal/config"
	"spendwise/internal/log"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default. An invalid level falls back to info.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, _ := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// MustValidate exits the process when validate reports an error.
func MustValidate(logger *log.Logger, validate func() error) {
	if err := validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
}

// OpenBackend opens the configured store. withEvents controls whether an
// AMQP publisher is attached. Exits the process on failure.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config, withEvents bool) *backend.Result {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if !withEvents {
		backendCfg.AMQPURL = ""
	}

	res, err := backend.NewFactory(logger.Logger).Open(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to open backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// GracefulShutdown calls shutdown with a bounded context once SIGINT or
// SIGTERM arrives. The returned context is cancelled after shutdown returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, shutdown func(ctx context.Context) error) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if shutdown != nil {
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error("Shutdown error", "error", err)
			}
		}
		cancel()
	}()

	return ctx
}

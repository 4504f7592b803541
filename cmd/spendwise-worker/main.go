package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/log"
	gsheet "spendwise/internal/sheets/google"
	"spendwise/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting spendwise-worker")
	cli.MustValidate(logger, cfg.ValidateWorker)

	ctx := cli.GracefulShutdown(logger, 10*time.Second, nil)

	// The worker consumes events itself, so the store needs no publisher.
	be := cli.OpenBackend(ctx, logger, cfg, false)
	defer be.Cleanup()

	sheetsClient, err := gsheet.NewFromCredentials(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, gsheet.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	if err := sheetsClient.EnsureHeader(ctx); err != nil {
		logger.Error("Failed to prepare sheet header", "error", err, "sheet", cfg.GoogleSheetName)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(be.Store, be.Store, sheetsClient)

	err = amqpClient.ConsumeExpenseEvents(ctx, syncWorker.HandleEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/cli"
	"carteira/internal/config"
	"carteira/internal/log"
	"carteira/internal/metrics"
	"carteira/internal/sheets"
	gsheet "carteira/internal/sheets/google"
	mem "carteira/internal/sheets/memory"
	"carteira/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the ledger worker")
		os.Exit(1)
	}

	result := cli.InitBackend(context.Background(), logger, cfg)
	mirror := newMirror(logger, cfg)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPBindingKey)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	m := metrics.New()
	w := worker.NewEventWorker(result.Store, mirror, m)
	metricsSrv := cli.ServeMetrics(logger, cfg.WorkerMetricsAddr, m)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		if err := client.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	// Events published while the worker was down are gone; rebuild the
	// listed owners from the store before consuming.
	for _, owner := range cfg.MirrorResyncOwners {
		n, err := w.Resync(ctx, owner)
		if err != nil {
			logger.Error("Startup resync failed", log.FieldOwnerID, owner, log.FieldError, err, "written", n)
		}
	}

	go func() {
		logger.Info("Consuming change events",
			"queue", cfg.AMQPQueue,
			"binding_key", cfg.AMQPBindingKey)
		if err := client.ConsumeChanges(ctx, w.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Change consumption failed", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Ledger worker stopped")
}

func newMirror(logger *log.Logger, cfg *config.Config) sheets.TransactionMirror {
	if !cfg.SheetsEnabled() {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring into memory only")
		return mem.New()
	}

	client, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client
}

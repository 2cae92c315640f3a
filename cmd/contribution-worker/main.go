package main

import (
	"context"
	"os"
	"time"

	"carteira/internal/cli"
	"carteira/internal/log"
	"carteira/internal/metrics"
	"carteira/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentContribution)
	logger.Info("Starting contribution-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	result := cli.InitBackend(context.Background(), logger, cfg)

	processor := services.NewContributionProcessor(result.Store, cli.ServiceOptions(cfg, result.Publisher)...)
	m := metrics.New()
	metricsSrv := cli.ServeMetrics(logger, cfg.WorkerMetricsAddr, m)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Automatic contribution processor configured",
		"interval", cfg.ContributionInterval,
		"backend", cfg.DataBackend)

	run := func() {
		start := time.Now()
		n, err := processor.ProcessDue(ctx, start.UTC())
		m.AutoContributions.Add(float64(n))
		m.RecordOperation("process_due_contributions", err)
		if err != nil {
			logger.Error("Contribution run failed", log.FieldError, err)
			return
		}
		logger.Info("Contribution run complete",
			"applied", n,
			"duration_ms", time.Since(start).Milliseconds())
	}

	// Catch up on anything owed while the worker was down.
	run()

	ticker := time.NewTicker(cfg.ContributionInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Contribution worker stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/cache"
	"carteira/internal/cli"
	"carteira/internal/config"
	apphttp "carteira/internal/http"
	"carteira/internal/log"
	"carteira/internal/metrics"
	"carteira/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, owners are taken from the X-Owner-ID header only")
	}

	result := cli.InitBackend(context.Background(), logger, cfg)

	opts := cli.ServiceOptions(cfg, result.Publisher)
	reports := services.NewReportService(result.Store, cfg.CacheTTL, opts...)
	// Every writer drops the owner's cached aggregates after commit.
	opts = append(opts, services.WithInvalidator(reports))

	svc := apphttp.Services{
		Ledger:  services.NewLedgerService(result.Store, opts...),
		Goals:   services.NewGoalService(result.Store, opts...),
		Wallets: services.NewWalletService(result.Store, opts...),
		Budget:  services.NewBudgetService(result.Store, opts...),
		Reports: reports,
	}

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.Register(reports.Caches()...)
	if cfg.CacheTTL > 0 {
		caches.StartCleanup(cfg.CacheTTL)
	} else {
		logger.Info("Report caching disabled")
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, result.Store, apphttp.Options{
		JWTSecret:          cfg.JWTSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.AllowedOrigins,
		Metrics:            metrics.New(),
		Cache:              caches,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	invalidations := newInvalidationConsumer(logger, cfg)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if invalidations != nil {
			if err := invalidations.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if invalidations != nil {
		// Writes from the contribution worker or other replicas reach this
		// process only as change events.
		go func() {
			logger.Info("Consuming change events for cache invalidation", "queue", cfg.AMQPCacheQueue)
			if err := invalidations.ConsumeChanges(ctx, reports.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Cache invalidation consumer stopped", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting carteira server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", result.Publisher != nil)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// newInvalidationConsumer opens the server's own queue bound to every change
// event. It returns nil when caching or AMQP is off.
func newInvalidationConsumer(logger *log.Logger, cfg *config.Config) *amqp.Client {
	if cfg.CacheTTL <= 0 || cfg.AMQPURL == "" || cfg.AMQPCacheQueue == "" {
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPCacheQueue, "#")
	if err != nil {
		logger.Warn("Cache invalidation consumer unavailable, caches expire by TTL only",
			log.FieldError, err,
			"ttl", cfg.CacheTTL)
		return nil
	}
	return client
}

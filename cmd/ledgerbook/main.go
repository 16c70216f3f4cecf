package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerbook/ledgerbook/internal/app"
	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/observability"
	"github.com/ledgerbook/ledgerbook/internal/platform/cache"
	"github.com/ledgerbook/ledgerbook/internal/reports"
	reporthttp "github.com/ledgerbook/ledgerbook/internal/reports/http"
	"github.com/ledgerbook/ledgerbook/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("open ledger", slog.Any("error", err))
		os.Exit(1)
	}
	defer stores.Close()

	metrics := observability.NewMetrics()
	if err := reports.SetupMetrics(metrics.Registerer()); err != nil {
		logger.Error("register report metrics", slog.Any("error", err))
		os.Exit(1)
	}

	agingService := ar.NewService(stores.Receivables, logger)
	reportService := reports.NewService(stores.Ledger, agingService, logger)
	checks := stores.Checks

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
		reportService.WithCache(reportCache)
		if err := reportCache.ListenForInvalidation(ctx, ""); err != nil {
			logger.Warn("cache invalidation listener", slog.Any("error", err))
		}
		checks["redis"] = app.CheckFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	var jobHandler *jobs.Handler
	if redisOpts, err := cache.AsynqOptions(cfg.RedisAddr); err != nil {
		logger.Warn("job queue options", slog.Any("error", err))
	} else {
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ReportHandler: reporthttp.NewHandler(logger, reportService),
		JobHandler:    jobHandler,
		Metrics:       metrics,
		Checks:        checks,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("driver", stores.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

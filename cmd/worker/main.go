package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ledgerbook/ledgerbook/internal/app"
	"github.com/ledgerbook/ledgerbook/internal/ar"
	jobmetrics "github.com/ledgerbook/ledgerbook/internal/jobs"
	"github.com/ledgerbook/ledgerbook/internal/platform/cache"
	"github.com/ledgerbook/ledgerbook/internal/reports"
	"github.com/ledgerbook/ledgerbook/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	redisOpts, err := cache.AsynqOptions(cfg.RedisAddr)
	if err != nil {
		logger.Error("job queue options", slog.Any("error", err))
		os.Exit(1)
	}

	reportService := reports.NewService(stores.Ledger, ar.NewService(stores.Receivables, logger), logger)
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, warm-up will not populate the cache", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		reportService.WithCache(reports.NewCache(redisClient, cfg.ReportCacheTTL))
	}

	metrics := jobmetrics.NewMetrics(nil)
	warmupJob := jobs.NewWarmupJob(reportService, stores.Ledger, logger, metrics)
	mailer, err := jobs.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort)
	if err != nil {
		logger.Error("configure smtp", slog.Any("error", err))
		os.Exit(1)
	}
	deliverJob := jobs.NewDeliverJob(reportService, mailer, cfg.SMTPFrom, logger, metrics)

	cron, err := schedule(ctx, cfg, stores.Ledger, logger)
	if err != nil {
		logger.Error("build schedule", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportsWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskReportsDeliver, Handler: deliverJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// schedule registers the warm-up cron and, when recipients are configured, one
// delivery per company and report. Companies created later are picked up on
// the next worker start.
func schedule(ctx context.Context, cfg *app.Config, companies jobs.CompanyLister, logger *slog.Logger) ([]jobs.CronRegistration, error) {
	var out []jobs.CronRegistration
	if cfg.WarmupCron != "" {
		task, err := jobs.NewWarmupTask()
		if err != nil {
			return nil, err
		}
		out = append(out, jobs.CronRegistration{Spec: cfg.WarmupCron, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	recipients := cfg.Recipients()
	if cfg.DeliveryCron == "" || len(recipients) == 0 {
		logger.Info("scheduled delivery disabled")
		return out, nil
	}
	ids, err := companies.ListCompanyIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		for _, report := range []string{reports.ReportBalanceSheet, reports.ReportProfitLoss, reports.ReportAging} {
			task, err := jobs.NewDeliverTask(jobs.DeliverPayload{CompanyID: id, Report: report, Recipients: recipients})
			if err != nil {
				return nil, err
			}
			out = append(out, jobs.CronRegistration{Spec: cfg.DeliveryCron, Task: task, Options: []asynq.Option{asynq.MaxRetry(5)}})
		}
	}
	return out, nil
}

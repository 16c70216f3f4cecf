package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ledgerbook/ledgerbook/internal/app"
	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/mcptools"
	"github.com/ledgerbook/ledgerbook/internal/reports"
)

const version = "1.0.0"

func main() {
	if app.InTestMode() {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewStderrLogger(cfg)

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("open ledger", slog.Any("error", err))
		os.Exit(1)
	}
	defer stores.Close()

	reportService := reports.NewService(stores.Ledger, ar.NewService(stores.Receivables, logger), logger)

	s := server.NewMCPServer(
		"ledgerbook",
		version,
		server.WithToolCapabilities(false),
	)
	mcptools.RegisterTools(s, reportService, stores.Ledger)

	logger.Info("mcp server ready", slog.String("driver", stores.Driver))
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp server", slog.Any("error", err))
		os.Exit(1)
	}
}

// Package cmd provides the ledgerctl commands.
package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerbook/ledgerbook/internal/accounting/sqlitestore"
	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/reports"
)

type options struct {
	dbPath    string
	redisAddr string
	debug     bool
	logger    *slog.Logger
}

// NewRootCommand builds the ledgerctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Import ledgers and print financial reports",
		Long: `ledgerctl works on a SQLite ledger file.

Example:
  ledgerctl import acme.yaml --db acme.db
  ledgerctl balance-sheet --company 1 --as-of 2024-03-31 --db acme.db
  ledgerctl profit-loss --company 1 --start 2024-01-01 --end 2024-03-31 --format csv`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.debug {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", envOr("SQLITE_PATH", "ledgerbook.db"), "SQLite ledger file")
	root.PersistentFlags().StringVar(&opts.redisAddr, "redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "Redis address for job commands")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newImportCommand(opts),
		newCompaniesCommand(opts),
		newBalanceSheetCommand(opts),
		newProfitLossCommand(opts),
		newAgingCommand(opts),
		newJobsCommand(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (o *options) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

func (o *options) openStore(ctx context.Context) (*sqlitestore.Store, error) {
	o.log().Debug("opening ledger", slog.String("path", o.dbPath))
	return sqlitestore.Open(ctx, o.dbPath)
}

func (o *options) reportService(store *sqlitestore.Store) *reports.Service {
	return reports.NewService(store, ar.NewService(store, o.log()), o.log())
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/accounting/sqlitestore"
	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/platform/db"
	"github.com/ledgerbook/ledgerbook/internal/reports"
	"github.com/ledgerbook/ledgerbook/migrations"
)

// LedgerBackend is the ledger read side plus company enumeration.
type LedgerBackend interface {
	reports.LedgerStore
	ListCompanyIDs(ctx context.Context) ([]int64, error)
}

// Stores bundles the ledger and receivables stores selected by LEDGER_DRIVER.
type Stores struct {
	Driver      string
	Ledger      LedgerBackend
	Receivables ar.ReceivablesStore
	// Checks holds readiness probes for the opened backends.
	Checks  map[string]HealthChecker
	closers []func()
}

// OpenStores connects the configured backend. Postgres schemas are migrated
// on open.
func OpenStores(ctx context.Context, cfg *Config, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.LedgerDriver {
	case DriverSQLite:
		store, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("ledger opened", slog.String("driver", DriverSQLite), slog.String("path", cfg.SQLitePath))
		return &Stores{
			Driver:      DriverSQLite,
			Ledger:      store,
			Receivables: store,
			Checks:      map[string]HealthChecker{"sqlite": CheckFunc(store.Ping)},
			closers:     []func(){func() { _ = store.Close() }},
		}, nil
	case DriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, ApplicationName: "ledgerbook"})
		if err != nil {
			return nil, err
		}
		applied, err := db.Migrate(ctx, pool, migrations.FS)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", slog.Any("names", applied))
		}
		return &Stores{
			Driver:      DriverPostgres,
			Ledger:      accounting.NewRepository(pool),
			Receivables: ar.NewRepository(pool),
			Checks:      map[string]HealthChecker{"postgres": CheckFunc(pool.Ping)},
			closers:     []func(){pool.Close},
		}, nil
	default:
		return nil, fmt.Errorf("app: unsupported ledger driver %q", cfg.LedgerDriver)
	}
}

// Close releases every opened backend.
func (s *Stores) Close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

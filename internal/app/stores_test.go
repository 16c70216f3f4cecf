package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenStoresSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{LedgerDriver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "ledger.db")}
	stores, err := OpenStores(ctx, cfg, nil)
	require.NoError(t, err)
	defer stores.Close()

	require.Equal(t, DriverSQLite, stores.Driver)
	require.NoError(t, stores.Checks["sqlite"].Ping(ctx))
	ids, err := stores.Ledger.ListCompanyIDs(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestOpenStoresRejectsUnknownDriver(t *testing.T) {
	_, err := OpenStores(context.Background(), &Config{LedgerDriver: "mysql"}, nil)
	require.ErrorContains(t, err, "unsupported ledger driver")
}

package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// unsetEnv removes keys for the duration of the test. An empty but present
// variable would defeat envconfig defaults.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		key := key
		prev, had := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(key, prev)
			} else {
				_ = os.Unsetenv(key)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t, "LEDGERBOOK_ENV_FILE", "LEDGER_DRIVER", "REPORT_CACHE_TTL", "APP_ENV", "APP_RATE_LIMIT", "PG_MAX_CONNS")
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, cfg.LedgerDriver)
	require.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	require.Equal(t, 60, cfg.RateLimitPerMinute)
	require.EqualValues(t, 10, cfg.PGMaxConns)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledgerbook.env")
	require.NoError(t, os.WriteFile(path, []byte("LEDGER_DRIVER=SQLite\nSQLITE_PATH=/tmp/books.db\nDELIVERY_RECIPIENTS=a@example.com, b@example.com\n"), 0o600))
	t.Setenv("LEDGERBOOK_ENV_FILE", path)
	// godotenv does not override variables that are already present
	t.Setenv("APP_ENV", "production")
	unsetEnv(t, "LEDGER_DRIVER", "SQLITE_PATH", "DELIVERY_RECIPIENTS")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.LedgerDriver)
	require.Equal(t, "/tmp/books.db", cfg.SQLitePath)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Recipients())
	require.True(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	unsetEnv(t, "LEDGERBOOK_ENV_FILE")
	t.Setenv("LEDGER_DRIVER", "mysql")
	t.Chdir(t.TempDir())

	_, err := LoadConfig()
	require.ErrorContains(t, err, "unknown LEDGER_DRIVER")
}

func TestLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.True(t, strings.HasPrefix(out, "{"))
	require.Contains(t, out, `"msg":"shown"`)
}

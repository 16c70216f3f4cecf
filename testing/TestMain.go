// Package testing marks the process as a test binary. Test files import it
// for its side effects so commands never start servers or open real stores.
package testing

import (
	"os"
	stdtesting "testing"
)

func init() {
	_ = os.Setenv("LEDGERBOOK_TEST_MODE", "1")
	setDefault("REDIS_ADDR", "127.0.0.1:0")
	setDefault("SMTP_HOST", "127.0.0.1")
	setDefault("LEDGER_DRIVER", "sqlite")
	setDefault("SQLITE_PATH", ":memory:")
}

func setDefault(key, value string) {
	if os.Getenv(key) == "" {
		_ = os.Setenv(key, value)
	}
}

// TestMain runs m. Packages without their own TestMain can delegate to it.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}

package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv names the variable that marks a test binary. Any value
// strconv.ParseBool accepts as true enables it.
const TestModeEnv = "LEDGERBOOK_TEST_MODE"

var inTestMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
})

// InTestMode reports whether binaries should return before opening stores,
// queues or listeners.
func InTestMode() bool {
	return inTestMode()
}

package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// CASHBOOK_TEST_MODE=1 makes the binaries exit before touching
// postgres or redis, so integration harnesses can exercise startup
// wiring without live backends.
const testModeEnv = "CASHBOOK_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	testModeOnce.Do(RefreshTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the environment flag, for tests that flip it.
func RefreshTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

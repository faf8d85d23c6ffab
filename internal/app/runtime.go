package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv, when true, makes the binaries skip side effects: the worker
// exits at startup and `landed migrate` refuses to run.
const TestModeEnv = "LANDED_TEST_MODE"

var testMode = sync.OnceValue(readTestMode)

func readTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
}

// InTestMode reports the cached test-mode flag.
func InTestMode() bool {
	return testMode()
}

// Package testing is blank-imported by command and job tests so that every
// binary entry point sees test mode before its init runs.
package testing

import (
	"os"
	stdtesting "testing"
)

var defaults = map[string]string{
	"LANDED_TEST_MODE": "1",
	"LOG_FORMAT":       "text",
	"LOCK_BACKEND":     "memory",
	"REFERENCE_SOURCE": "static",
}

func init() { applyDefaults() }

// applyDefaults keeps values the caller already exported.
func applyDefaults() {
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain can be assigned from a package that wants the defaults reapplied
// after its own init.
func TestMain(m *stdtesting.M) {
	applyDefaults()
	os.Exit(m.Run())
}

// Package guard switches the process into test mode and gates integration
// tests on external services.
package guard

import (
	"os"
	"sync"
	"testing"
)

// PostgresDSNEnv names the DSN used by PostgreSQL integration tests.
const PostgresDSNEnv = "LANDED_TEST_PG_DSN"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LANDED_TEST_MODE") == "" {
			_ = os.Setenv("LANDED_TEST_MODE", "1")
		}
	})
}

// PostgresDSN returns the integration DSN or skips t when it is unset.
func PostgresDSN(t testing.TB) string {
	t.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping PostgreSQL integration test", PostgresDSNEnv)
	}
	return dsn
}

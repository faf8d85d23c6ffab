package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/landedcost/internal/observability"
	"github.com/odyssey-erp/landedcost/jobs"
)

func TestRouterHealthz(t *testing.T) {
	router := NewRouter(RouterParams{
		Logger: discardLogger(),
		Checks: map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "ok", body["postgres"])
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouterHealthzDegraded(t *testing.T) {
	router := NewRouter(RouterParams{
		Logger: discardLogger(),
		Checks: map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "degraded")
}

func TestRouterMetricsAndReference(t *testing.T) {
	refCache, err := NewReferenceCache(testConfig(), nil)
	require.NoError(t, err)
	metrics := observability.NewMetrics()

	router := NewRouter(RouterParams{
		Logger:     discardLogger(),
		Metrics:    metrics,
		JobHandler: jobs.NewHandler(nil, discardLogger()),
		Reference:  refCache,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reference/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var summary map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Positive(t, summary["tariffs"])
	require.Positive(t, summary["weight_tiers"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"queue":"default"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "landed_http_requests_total"))
}

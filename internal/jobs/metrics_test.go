package jobmetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("reference:warmup").End(nil))
	boom := errors.New("redis down")
	require.ErrorIs(t, m.Track("reference:warmup").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("reference:warmup", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("reference:warmup", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("reference:warmup")))
}

func TestSweepAndRefreshGauges(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.AddLocksSwept(3)
	m.AddLocksSwept(0)
	require.Equal(t, 3.0, testutil.ToFloat64(m.locksSwept))

	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	m.MarkReferenceRefreshed(at)
	require.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.referenceAge))
}

func TestNilMetricsTracker(t *testing.T) {
	var m *Metrics
	boom := errors.New("x")
	require.ErrorIs(t, m.Track("job").End(boom), boom)
	m.AddLocksSwept(2)
	m.MarkReferenceRefreshed(time.Now())
}

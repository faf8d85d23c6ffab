package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk engine landed-cost dan worker.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	lockAcquire     *prometheus.CounterVec
	lockRelease     *prometheus.CounterVec
	verdicts        *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry beserta metrik HTTP, lock, dan verdict.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landed_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "landed_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	acquire := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landed_lock_acquire_total",
		Help: "Percobaan acquire listing lock per backend dan hasil.",
	}, []string{"backend", "outcome"})
	release := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landed_lock_release_total",
		Help: "Listing lock yang dilepas per backend.",
	}, []string{"backend"})
	verdicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landed_profitability_verdicts_total",
		Help: "Verdict profitability per hasil (both, amount_only, margin_only, reject).",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, acquire, release, verdicts)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		lockAcquire:     acquire,
		lockRelease:     release,
		verdicts:        verdicts,
	}
}

// LockAcquire mencatat hasil acquire listing lock.
func (m *Metrics) LockAcquire(backend, outcome string) {
	if m == nil {
		return
	}
	m.lockAcquire.WithLabelValues(backend, outcome).Inc()
}

// LockRelease mencatat pelepasan listing lock.
func (m *Metrics) LockRelease(backend string) {
	if m == nil {
		return
	}
	m.lockRelease.WithLabelValues(backend).Inc()
}

// ProfitabilityVerdict mencatat hasil gate profitability.
func (m *Metrics) ProfitabilityVerdict(outcome string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(outcome).Inc()
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/landedcost/internal/observability"
	"github.com/odyssey-erp/landedcost/internal/platform/httpx"
	"github.com/odyssey-erp/landedcost/internal/reference"
	"github.com/odyssey-erp/landedcost/jobs"
)

// SnapshotSource returns the current reference snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*reference.Snapshot, error)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the ops router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Metrics    *observability.Metrics
	JobHandler *jobs.Handler
	Reference  SnapshotSource
	Checks     map[string]HealthCheck
}

// NewRouter constructs the ops chi.Router: health, metrics, queue health and
// a reference snapshot summary.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range params.Checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		httpx.JSON(w, code, status)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Reference != nil {
		r.Get("/reference/summary", func(w http.ResponseWriter, r *http.Request) {
			snap, err := params.Reference.Snapshot(r.Context())
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]int{
				"tariffs":      len(snap.Tariffs),
				"additional":   len(snap.Additional),
				"weight_tiers": len(snap.WeightTiers),
			})
		})
	}
	return r
}

package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerbook/ledgerbook/internal/observability"
	"github.com/ledgerbook/ledgerbook/internal/platform/httpx"
	reporthttp "github.com/ledgerbook/ledgerbook/internal/reports/http"
	"github.com/ledgerbook/ledgerbook/jobs"
)

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc func(ctx context.Context) error

// Ping calls f.
func (f CheckFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	ReportHandler *reporthttp.Handler
	JobHandler    *jobs.Handler
	Metrics       *observability.Metrics
	// Checks are pinged by /readyz, keyed by component name.
	Checks map[string]HealthChecker
}

// NewRouter constructs the chi.Router with ledgerbook defaults.
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
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readyHandler(params.Logger, params.Checks, params.Metrics))

	if params.ReportHandler != nil {
		r.Route("/reports", params.ReportHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}

func readyHandler(logger *slog.Logger, checks map[string]HealthChecker, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		body := map[string]string{}
		for name, check := range checks {
			err := check.Ping(ctx)
			metrics.SetDependency(name, err == nil)
			if err != nil {
				if logger != nil {
					logger.Warn("readiness check failed", slog.String("component", name), slog.Any("error", err))
				}
				body[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "up"
		}
		httpx.JSON(w, status, body)
	}
}

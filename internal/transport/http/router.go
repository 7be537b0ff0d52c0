package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	alerthandler "complyflow/internal/alerts/handler"
	cataloghandler "complyflow/internal/catalog/handler"
	factshandler "complyflow/internal/facts/handler"
	statehandler "complyflow/internal/state/handler"

	"complyflow/internal/platform/middleware"
	"complyflow/pkg/platform/httputil"
)

// HealthChecker reports readiness of one backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthFunc adapts a plain function to HealthChecker.
type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Health(ctx context.Context) error { return f(ctx) }

// Deps carries everything the router mounts.
type Deps struct {
	Catalog *cataloghandler.Handler
	State   *statehandler.Handler
	Facts   *factshandler.Handler
	Alerts  *alerthandler.Handler

	AdminValidator *middleware.AdminValidator
	Logger         *slog.Logger

	// Health checks run on /healthz, keyed by dependency name. Nil values
	// are skipped so memory-backed runs stay healthy.
	Health map[string]HealthChecker
}

// NewRouter assembles the full HTTP surface: fact intake, the calculation
// API, alert lifecycle, and the admin-only rule catalog.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", handleHealth(d.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			d.Facts.Register(r)
			d.State.Register(r)
			d.Alerts.Register(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			r.Use(middleware.RequireAdmin(d.AdminValidator, d.Logger))
			d.Catalog.Register(r)
		})
	})

	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(ctx); err != nil {
				deps[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "up"
		}

		body := map[string]any{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}
		httputil.WriteJSON(w, status, body)
	}
}

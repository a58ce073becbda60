// Package httptransport assembles the HTTP surface: routing, middleware and
// operational endpoints. Business logic stays in the domain packages.
package httptransport

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"afmcheck/internal/platform/middleware"
	"afmcheck/internal/platform/redis"
	"afmcheck/internal/verify/handler"
)

// Deps collects everything the router needs. Redis may be nil when the
// scraper cooldown store is not configured.
type Deps struct {
	Lookups   *handler.Handler
	Validator middleware.TokenValidator
	Logger    *slog.Logger
	DB        *sql.DB
	Redis     *redis.Client
}

// NewRouter wires the public API, the metrics endpoint and the health probes.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Metadata(d.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", readiness(d))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Validator, d.Logger))
		d.Lookups.Register(r)
	})

	return r
}

// readiness pings the backing stores with a short deadline so a wedged
// dependency is reported rather than hung on.
func readiness(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if d.DB != nil {
			if err := d.DB.PingContext(ctx); err != nil {
				d.Logger.WarnContext(ctx, "readiness: database unreachable", "error", err)
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if d.Redis != nil {
			if err := d.Redis.Health(ctx); err != nil {
				d.Logger.WarnContext(ctx, "readiness: redis unreachable", "error", err)
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

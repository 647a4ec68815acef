// Package admin exposes the ambient, non-behavioral HTTP surface
// (health, readiness, metrics) shared by the worker, sync, and
// aggregator processes. It never accepts scan requests — synchronous
// APIs are a Non-goal of the pipeline (§1).
package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checker reports whether a collaborator (datastore, bus, lock store)
// is reachable.
type Checker func(ctx context.Context) error

// NewRouter builds the admin router: liveness always open, readiness
// and the Prometheus scrape endpoint behind basic auth when
// adminUser is non-empty (§6 "admin credentials").
func NewRouter(ready Checker, metricsEnabled bool, adminUser, adminPassword string) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if adminUser != "" {
			r.Use(middleware.BasicAuth("scan-pipeline admin", map[string]string{adminUser: adminPassword}))
		}

		r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
			if ready == nil {
				w.WriteHeader(http.StatusOK)
				return
			}
			if err := ready(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})

		if metricsEnabled {
			r.Handle("/metrics", promhttp.Handler())
		}
	})

	return r
}

// Package router assembles the HTTP surface around the hybrid pipeline.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulseline-ai/agent-backend/internal/handler"
	"github.com/pulseline-ai/agent-backend/internal/middleware"
)

// Dependencies holds all injected services needed by the router.
type Dependencies struct {
	Chat       *handler.ChatHandler
	Health     *handler.HealthHandler
	Memory     *handler.MemoryHandler
	Metrics    *middleware.Metrics
	MetricsReg *prometheus.Registry
}

// New builds the router.
func New(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging)
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	r.Method(http.MethodGet, "/healthz", deps.Health)
	if deps.MetricsReg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.MetricsReg, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Method(http.MethodPost, "/chat", deps.Chat)
		r.Get("/memory/stats", deps.Memory.Stats)
		r.Delete("/memory/{userID}", deps.Memory.Clear)
	})

	return r
}

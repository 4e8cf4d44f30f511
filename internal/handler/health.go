package handler

import (
	"net/http"

	"github.com/pulseline-ai/agent-backend/internal/breaker"
)

// HealthHandler serves GET /healthz with breaker states so operators can see
// degraded dependencies at a glance.
type HealthHandler struct {
	breakers *breaker.Registry
	version  string
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(breakers *breaker.Registry, version string) *HealthHandler {
	return &HealthHandler{breakers: breakers, version: version}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  h.version,
		"breakers": h.breakers.Snapshot(),
	})
}

package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pulseline-ai/agent-backend/internal/memory"
	"github.com/pulseline-ai/agent-backend/internal/model"
)

// MemoryAdmin is the session-memory surface the admin endpoints need.
type MemoryAdmin interface {
	Stats(ctx context.Context) (memory.Stats, error)
	Clear(ctx context.Context, userKey int64) error
}

// MemoryHandler serves the session-memory admin endpoints.
type MemoryHandler struct {
	store MemoryAdmin
}

// NewMemoryHandler creates a MemoryHandler.
func NewMemoryHandler(store MemoryAdmin) *MemoryHandler {
	return &MemoryHandler{store: store}
}

// Stats serves GET /v1/memory/stats.
func (h *MemoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "stats unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}

// Clear serves DELETE /v1/memory/{userID}.
func (h *MemoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "userID is required"})
		return
	}
	if err := h.store.Clear(r.Context(), model.UserKey(userID)); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "clear failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

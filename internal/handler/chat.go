// Package handler exposes the hybrid pipeline over HTTP. The handlers only
// decode and encode; all behavior lives in the service layer.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pulseline-ai/agent-backend/internal/model"
	"github.com/pulseline-ai/agent-backend/internal/service"
)

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
	Voice     bool   `json:"voice,omitempty"`
}

// ChatResponse wraps the pipeline Response for transport.
type ChatResponse struct {
	Success  bool            `json:"success"`
	Response *model.Response `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// ChatHandler serves POST /v1/chat.
type ChatHandler struct {
	orchestrator *service.Orchestrator
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(orchestrator *service.Orchestrator) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator}
}

// ServeHTTP runs one query through the pipeline. Rate-limited messages are
// dropped silently, surfaced as 429 with no body so transports can ignore
// them.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ChatResponse{Success: false, Error: "invalid request body"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, ChatResponse{Success: false, Error: "userId is required"})
		return
	}

	q := model.NewQuery(uuid.New().String(), req.UserID, req.SessionID, req.Message, time.Now())
	q.VoiceMode = req.Voice

	resp := h.orchestrator.Handle(r.Context(), q)
	if resp == nil {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Success: true, Response: resp})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

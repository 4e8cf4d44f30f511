package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pulseline-ai/agent-backend/internal/memory"
)

type stubMemoryAdmin struct {
	cleared []int64
	stats   memory.Stats
}

func (s *stubMemoryAdmin) Stats(ctx context.Context) (memory.Stats, error) {
	return s.stats, nil
}

func (s *stubMemoryAdmin) Clear(ctx context.Context, userKey int64) error {
	s.cleared = append(s.cleared, userKey)
	return nil
}

func TestMemoryStats(t *testing.T) {
	admin := &stubMemoryAdmin{stats: memory.Stats{ActiveSessions: 2, TotalMessages: 10, UniqueUsers: 2}}
	h := NewMemoryHandler(admin)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/v1/memory/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMemoryClear(t *testing.T) {
	admin := &stubMemoryAdmin{}
	h := NewMemoryHandler(admin)

	r := chi.NewRouter()
	r.Delete("/v1/memory/{userID}", h.Clear)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/memory/user-42", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(admin.cleared) != 1 {
		t.Fatalf("cleared %d users, want 1", len(admin.cleared))
	}
}

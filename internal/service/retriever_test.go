package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pulseline-ai/agent-backend/internal/breaker"
	"github.com/pulseline-ai/agent-backend/internal/domain"
	"github.com/pulseline-ai/agent-backend/internal/model"
)

// mockVectorSearcher implements VectorSearcher for testing.
type mockVectorSearcher struct {
	chunks      []model.Chunk
	err         error
	calls       int
	capturedK   int
	capturedQry string
}

func (m *mockVectorSearcher) SimilaritySearch(ctx context.Context, query string, k int) ([]model.Chunk, error) {
	m.calls++
	m.capturedQry = query
	m.capturedK = k
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.Chunk, len(m.chunks))
	copy(out, m.chunks)
	return out, nil
}

func domainChunk(id, sourceType string, distance float64) model.Chunk {
	return model.Chunk{
		ID:       id,
		Content:  "content for " + id,
		Distance: distance,
		Metadata: model.ChunkMetadata{Source: id + ".txt", SourceType: sourceType},
	}
}

func overrideChunk(id, source string) model.Chunk {
	return model.Chunk{
		ID:       id,
		Content:  "directive " + id,
		Distance: 0.2,
		Metadata: model.ChunkMetadata{Source: source, SourceType: model.SourceTypeOverride, IsOverride: true},
	}
}

func newRetriever(searcher VectorSearcher) (*RetrieverService, *breaker.Registry) {
	breakers := breaker.New(5, 300*time.Second)
	return NewRetrieverService(searcher, breakers, domain.DefaultTable()), breakers
}

func TestRetrieve_OverridesFirst(t *testing.T) {
	searcher := &mockVectorSearcher{chunks: []model.Chunk{
		domainChunk("reg-1", "f1_data", 0.3),
		overrideChunk("ovr-1", "F1_ANALYST: no sponsor talk"),
		domainChunk("reg-2", "f1_data", 0.4),
	}}
	svc, _ := newRetriever(searcher)

	got := svc.Retrieve(context.Background(), "race pace", "f1", 5)

	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3", len(got))
	}
	if !got[0].Metadata.IsOverride {
		t.Error("override chunk not first")
	}
	if searcher.capturedK != 15 {
		t.Errorf("searcher fetched %d candidates, want 3k = 15", searcher.capturedK)
	}
}

func TestRetrieve_DomainFilterBySourceType(t *testing.T) {
	searcher := &mockVectorSearcher{chunks: []model.Chunk{
		domainChunk("f1-1", "f1_data", 0.3),
		domainChunk("nba-1", "nba_data", 0.2),
		domainChunk("file-1", model.SourceTypeFile, 0.1),
	}}
	svc, _ := newRetriever(searcher)

	got := svc.Retrieve(context.Background(), "race pace", "f1", 5)

	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1 in-domain chunk", len(got))
	}
	if got[0].ID != "f1-1" {
		t.Errorf("chunk = %q, want f1-1", got[0].ID)
	}
}

func TestRetrieve_OverrideDomainScoping(t *testing.T) {
	searcher := &mockVectorSearcher{chunks: []model.Chunk{
		overrideChunk("f1-ovr", "F1_ANALYST: directive"),
		overrideChunk("nba-ovr", "NBA_ANALYST: directive"),
		overrideChunk("plain-ovr", "HOUSE_RULE: directive"),
	}}
	svc, _ := newRetriever(searcher)

	got := svc.Retrieve(context.Background(), "race pace", "f1", 5)

	ids := make(map[string]bool)
	for _, c := range got {
		ids[c.ID] = true
	}
	if !ids["f1-ovr"] {
		t.Error("in-domain override dropped")
	}
	if ids["nba-ovr"] {
		t.Error("other-domain override kept")
	}
	if !ids["plain-ovr"] {
		t.Error("untagged override dropped; overrides without a domain tag apply everywhere")
	}
}

func TestRetrieve_BoostDividesDistance(t *testing.T) {
	searcher := &mockVectorSearcher{chunks: []model.Chunk{domainChunk("f1-1", "f1_data", 0.6)}}
	svc, _ := newRetriever(searcher)

	got := svc.Retrieve(context.Background(), "race pace", "f1", 5)

	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	want := 0.6 / 1.2
	if diff := got[0].Distance - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Distance = %v, want %v", got[0].Distance, want)
	}
}

func TestRetrieve_BackendErrorReturnsEmpty(t *testing.T) {
	searcher := &mockVectorSearcher{err: fmt.Errorf("store down")}
	svc, breakers := newRetriever(searcher)

	got := svc.Retrieve(context.Background(), "anything", "", 5)

	if got != nil {
		t.Fatalf("got %v, want nil on backend error", got)
	}
	if failures := breakers.Snapshot()[breaker.ServiceRAGSearch].Failures; failures != 1 {
		t.Errorf("breaker failures = %d, want 1", failures)
	}
}

func TestRetrieve_BreakerOpenSkipsBackend(t *testing.T) {
	searcher := &mockVectorSearcher{chunks: []model.Chunk{domainChunk("c", "f1_data", 0.1)}}
	svc, breakers := newRetriever(searcher)
	for i := 0; i < 5; i++ {
		breakers.RecordFailure(breaker.ServiceRAGSearch)
	}

	got := svc.Retrieve(context.Background(), "anything", "f1", 5)

	if got != nil {
		t.Fatalf("got %v, want nil with open breaker", got)
	}
	if searcher.calls != 0 {
		t.Errorf("backend called %d times with open breaker, want 0", searcher.calls)
	}
}

func TestRetrieveMulti_MergesDomains(t *testing.T) {
	searcher := &mockVectorSearcher{chunks: []model.Chunk{
		domainChunk("f1-1", "f1_data", 0.3),
		domainChunk("nba-1", "nba_data", 0.2),
	}}
	svc, _ := newRetriever(searcher)

	got := svc.RetrieveMulti(context.Background(), "crossover question", []string{"f1", "nba"}, 5)

	ids := make(map[string]bool)
	for _, c := range got {
		ids[c.ID] = true
	}
	if !ids["f1-1"] || !ids["nba-1"] {
		t.Errorf("merged results = %v, want chunks from both domains", ids)
	}
}

func TestCloseChunks(t *testing.T) {
	chunks := []model.Chunk{
		domainChunk("near", "f1_data", 0.3),
		domainChunk("far", "f1_data", 1.5),
	}
	got := CloseChunks(chunks)
	if len(got) != 1 || got[0].ID != "near" {
		t.Errorf("CloseChunks() = %v, want only the near chunk", got)
	}
}

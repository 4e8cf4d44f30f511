package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pulseline-ai/agent-backend/internal/breaker"
	"github.com/pulseline-ai/agent-backend/internal/domain"
	"github.com/pulseline-ai/agent-backend/internal/model"
)

const (
	// DefaultTopK is the number of chunks a retrieval returns.
	DefaultTopK = 5
	// candidateMultiplier widens the neighbour fetch so domain filtering
	// still leaves enough survivors.
	candidateMultiplier = 3
	// CloseDistance is the similarity distance below which downstream
	// consumers treat a chunk as relevant. Store-dependent.
	CloseDistance = 0.8
)

// VectorSearcher abstracts the embedding store's similarity search. The
// returned chunks carry a non-negative distance, smaller = closer.
// Implementations are thread-safe and read-only from the core's perspective.
type VectorSearcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]model.Chunk, error)
}

// RetrieverService returns domain-filtered chunks with override directives
// promoted to the front. Backend failures degrade to an empty result and
// feed the rag_search breaker; they never surface as request errors.
type RetrieverService struct {
	searcher VectorSearcher
	breakers *breaker.Registry
	table    *domain.Table
}

// NewRetrieverService creates a RetrieverService.
func NewRetrieverService(searcher VectorSearcher, breakers *breaker.Registry, table *domain.Table) *RetrieverService {
	return &RetrieverService{searcher: searcher, breakers: breakers, table: table}
}

// Retrieve returns up to k chunks relevant to the query, overrides first.
// When domainKey is non-empty only chunks belonging to that domain (or
// untagged overrides) survive, with distances divided by the domain's
// priority boost so in-domain chunks dominate downstream scoring.
func (s *RetrieverService) Retrieve(ctx context.Context, query, domainKey string, k int) []model.Chunk {
	if k <= 0 {
		k = DefaultTopK
	}
	if !s.breakers.Allow(breaker.ServiceRAGSearch) {
		slog.Warn("rag search skipped, circuit breaker open")
		return nil
	}

	candidates, err := s.searcher.SimilaritySearch(ctx, query, k*candidateMultiplier)
	if err != nil {
		slog.Error("rag search failed", "error", err)
		s.breakers.RecordFailure(breaker.ServiceRAGSearch)
		return nil
	}
	s.breakers.RecordSuccess(breaker.ServiceRAGSearch)

	var d *domain.Domain
	if domainKey != "" {
		d = s.table.ByKey(domainKey)
	}

	overrides, regular := partition(candidates)
	if d != nil {
		overrides = s.filterOverrides(overrides, d)
		regular = filterBySourceType(regular, d)
	}

	results := append(overrides, regular...)
	if d != nil {
		boost := d.Boost()
		for i := range results {
			results[i].Distance /= boost
		}
	}

	if len(results) > k {
		results = results[:k]
	}
	slog.Info("rag retrieval complete",
		"domain", domainKey,
		"candidates", len(candidates),
		"returned", len(results),
		"overrides", len(overrides),
	)
	return results
}

// RetrieveMulti fans retrieval out across several domains concurrently and
// concatenates the results in domain order, overrides leading within each.
func (s *RetrieverService) RetrieveMulti(ctx context.Context, query string, domainKeys []string, k int) []model.Chunk {
	if len(domainKeys) == 0 {
		return s.Retrieve(ctx, query, "", k)
	}
	if k <= 0 {
		k = DefaultTopK
	}
	perDomain := k/len(domainKeys) + 1

	results := make([][]model.Chunk, len(domainKeys))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	for i, key := range domainKeys {
		g.Go(func() error {
			chunks := s.Retrieve(gCtx, query, key, perDomain)
			mu.Lock()
			results[i] = chunks
			mu.Unlock()
			return nil
		})
	}
	// Retrieve never errors; Wait only observes ctx cancellation.
	_ = g.Wait()

	var merged []model.Chunk
	for _, r := range results {
		merged = append(merged, r...)
	}
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged
}

// partition splits chunks into override directives and regular knowledge,
// preserving relative order.
func partition(chunks []model.Chunk) (overrides, regular []model.Chunk) {
	for _, c := range chunks {
		if c.Metadata.IsOverride {
			overrides = append(overrides, c)
		} else {
			regular = append(regular, c)
		}
	}
	return overrides, regular
}

// filterOverrides keeps override chunks whose source name starts with one of
// the domain's override prefixes, plus chunks no domain claims at all.
func (s *RetrieverService) filterOverrides(overrides []model.Chunk, d *domain.Domain) []model.Chunk {
	var kept []model.Chunk
	for _, c := range overrides {
		source := strings.ToUpper(c.Metadata.Source)
		if hasAnyPrefix(source, d.OverridePrefixes) {
			kept = append(kept, c)
			continue
		}
		if !s.taggedByAnyDomain(source) {
			kept = append(kept, c)
		}
	}
	return kept
}

func (s *RetrieverService) taggedByAnyDomain(upperSource string) bool {
	for _, d := range s.table.Domains {
		if hasAnyPrefix(upperSource, d.OverridePrefixes) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(upperSource string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(upperSource, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

func filterBySourceType(chunks []model.Chunk, d *domain.Domain) []model.Chunk {
	allowed := make(map[string]bool, len(d.SourceTypes))
	for _, t := range d.SourceTypes {
		allowed[t] = true
	}
	var kept []model.Chunk
	for _, c := range chunks {
		if allowed[c.Metadata.SourceType] {
			kept = append(kept, c)
		}
	}
	return kept
}

// HasOverrides reports whether any chunk is an override directive.
func HasOverrides(chunks []model.Chunk) bool {
	for _, c := range chunks {
		if c.Metadata.IsOverride {
			return true
		}
	}
	return false
}

// CloseChunks returns the chunks whose distance is below CloseDistance,
// preserving their order.
func CloseChunks(chunks []model.Chunk) []model.Chunk {
	var close []model.Chunk
	for _, c := range chunks {
		if c.Distance < CloseDistance {
			close = append(close, c)
		}
	}
	return close
}

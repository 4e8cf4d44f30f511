package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/pulseline-ai/agent-backend/internal/breaker"
	"github.com/pulseline-ai/agent-backend/internal/model"
)

const (
	// DefaultWebSearchTimeout bounds the whole provider chain.
	DefaultWebSearchTimeout = 15 * time.Second
	// DefaultProviderTimeout bounds one provider attempt.
	DefaultProviderTimeout = 10 * time.Second
	// MaxWebRetries is how many times transport failures are retried.
	MaxWebRetries = 2
	// maxWebQueryChars truncates oversized search queries.
	maxWebQueryChars = 500
	// minUsefulContent is the snippet length below which a provider's
	// results don't count as a win.
	minUsefulContent = 20
)

// SearchProvider is one external web search backend. Providers are consulted
// in configured order; each must respect the caller's deadline.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, n int) ([]model.WebResult, error)
}

// WebSearchService runs the multi-provider fallback search with deadline,
// retries, and breaker accounting.
type WebSearchService struct {
	providers       []SearchProvider
	breakers        *breaker.Registry
	timeout         time.Duration
	providerTimeout time.Duration
	sleepFunc       func(ctx context.Context, d time.Duration)
}

// NewWebSearchService creates a WebSearchService over the given provider
// chain. Zero timeouts select the defaults.
func NewWebSearchService(providers []SearchProvider, breakers *breaker.Registry, timeout, providerTimeout time.Duration) *WebSearchService {
	if timeout <= 0 {
		timeout = DefaultWebSearchTimeout
	}
	if providerTimeout <= 0 {
		providerTimeout = DefaultProviderTimeout
	}
	return &WebSearchService{
		providers:       providers,
		breakers:        breakers,
		timeout:         timeout,
		providerTimeout: providerTimeout,
		sleepFunc:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Search fetches up to n relevant snippets. It returns the first provider's
// useful results, a synthetic search-suggestion result when every provider
// comes back empty, or nil when retries are exhausted on transport errors.
func (s *WebSearchService) Search(ctx context.Context, query string, n int) []model.WebResult {
	if query == "" {
		return nil
	}
	if len(query) > maxWebQueryChars {
		query = query[:maxWebQueryChars]
		slog.Debug("web search query truncated", "chars", maxWebQueryChars)
	}
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}

	if !s.breakers.Allow(breaker.ServiceWebSearch) {
		slog.Warn("web search skipped, circuit breaker open")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		results, failed := s.tryProviders(ctx, query, n)
		if len(results) > 0 {
			s.breakers.RecordSuccess(breaker.ServiceWebSearch)
			return results
		}

		if !failed {
			// Providers answered but had nothing useful: hand the user a
			// canonical search pointer. Neither success nor failure for the
			// breaker.
			return []model.WebResult{searchSuggestion(query)}
		}

		if attempt >= MaxWebRetries || ctx.Err() != nil {
			slog.Warn("web search retries exhausted", "attempts", attempt+1)
			s.breakers.RecordFailure(breaker.ServiceWebSearch)
			return nil
		}
		slog.Info("web search retrying", "attempt", attempt+1)
		s.sleepFunc(ctx, time.Duration(attempt+1)*time.Second)
	}
}

// tryProviders walks the provider chain once. failed is true when every
// provider errored (as opposed to returning nothing).
func (s *WebSearchService) tryProviders(ctx context.Context, query string, n int) (results []model.WebResult, failed bool) {
	errored := 0
	for _, p := range s.providers {
		if ctx.Err() != nil {
			return nil, true
		}
		pCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
		res, err := p.Search(pCtx, query, n)
		cancel()
		if err != nil {
			slog.Warn("web search provider failed", "provider", p.Name(), "error", err)
			errored++
			continue
		}
		if useful(res) {
			slog.Info("web search provider succeeded", "provider", p.Name(), "results", len(res))
			if len(res) > n {
				res = res[:n]
			}
			return res, false
		}
	}
	return nil, errored == len(s.providers) && len(s.providers) > 0
}

// useful reports whether a provider returned at least one result with
// meaningful content.
func useful(results []model.WebResult) bool {
	for _, r := range results {
		if len(r.Snippet) > minUsefulContent {
			return true
		}
	}
	return false
}

// searchSuggestion is the synthetic fallback pointing the user at a
// canonical external search.
func searchSuggestion(query string) model.WebResult {
	return model.WebResult{
		Title: "Web Search Suggestion",
		Snippet: fmt.Sprintf("I wasn't able to search the web for current information about %q. "+
			"For up-to-date statistics and results, check official sources such as the league or "+
			"championship website.", query),
		URL: "https://www.google.com/search?q=" + url.QueryEscape(query),
	}
}

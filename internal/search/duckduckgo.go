package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pulseline-ai/agent-backend/internal/model"
)

// maxSnippetChars bounds instant-answer extracts before prompt fusion.
const maxSnippetChars = 500

// DuckDuckGoProvider answers from the instant-answer API: an abstract when
// the query resolves to an entity, related topics otherwise.
type DuckDuckGoProvider struct {
	httpClient *http.Client
	baseURL    string
}

// NewDuckDuckGoProvider creates a DuckDuckGoProvider. baseURL is overridable
// for tests; empty selects the public endpoint.
func NewDuckDuckGoProvider(httpClient *http.Client, baseURL string) *DuckDuckGoProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://api.duckduckgo.com"
	}
	return &DuckDuckGoProvider{httpClient: httpClient, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Name implements service.SearchProvider.
func (p *DuckDuckGoProvider) Name() string { return "duckduckgo" }

type instantAnswer struct {
	Abstract      string `json:"Abstract"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// Search implements service.SearchProvider.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, n int) ([]model.WebResult, error) {
	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		p.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("search.DuckDuckGo: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search.DuckDuckGo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search.DuckDuckGo: status %d", resp.StatusCode)
	}

	var answer instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("search.DuckDuckGo: decode: %w", err)
	}

	var results []model.WebResult
	if len(answer.Abstract) > 20 {
		title := answer.AbstractText
		if title == "" {
			title = "Search Result"
		}
		results = append(results, model.WebResult{
			Title:   clip(title, 200),
			Snippet: clip(answer.Abstract, maxSnippetChars),
			URL:     orDefault(answer.AbstractURL, "https://duckduckgo.com/"),
		})
	}
	for _, topic := range answer.RelatedTopics {
		if len(results) >= n {
			break
		}
		if topic.Text == "" {
			continue
		}
		results = append(results, model.WebResult{
			Title:   "Related Information",
			Snippet: clip(topic.Text, maxSnippetChars),
			URL:     orDefault(topic.FirstURL, "https://duckduckgo.com/"),
		})
	}
	return results, nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Package search implements the external web search providers consulted by
// the pipeline's web search stage.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/pulseline-ai/agent-backend/internal/model"
)

const userAgent = "pulseline-agent/1.0 (+https://github.com/pulseline-ai/agent-backend)"

// minSummaryChars is the extract length below which a summary hit is not
// worth returning.
const minSummaryChars = 50

// WikipediaProvider answers from the encyclopedia summary API, falling back
// to the full-text search API when no page matches the query directly.
type WikipediaProvider struct {
	httpClient *http.Client
	baseURL    string
}

// NewWikipediaProvider creates a WikipediaProvider. baseURL is overridable
// for tests; empty selects the public endpoint.
func NewWikipediaProvider(httpClient *http.Client, baseURL string) *WikipediaProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://en.wikipedia.org"
	}
	return &WikipediaProvider{httpClient: httpClient, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Name implements service.SearchProvider.
func (p *WikipediaProvider) Name() string { return "wikipedia" }

type wikiSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// Search implements service.SearchProvider.
func (p *WikipediaProvider) Search(ctx context.Context, query string, n int) ([]model.WebResult, error) {
	summaryURL := p.baseURL + "/api/rest_v1/page/summary/" + url.PathEscape(strings.ReplaceAll(query, " ", "_"))

	var summary wikiSummary
	status, err := p.getJSON(ctx, summaryURL, &summary)
	if err != nil {
		return nil, fmt.Errorf("search.Wikipedia: summary: %w", err)
	}

	if status == http.StatusOK && len(summary.Extract) > minSummaryChars {
		pageURL := summary.ContentURLs.Desktop.Page
		if pageURL == "" {
			pageURL = p.baseURL + "/wiki/" + url.PathEscape(summary.Title)
		}
		return []model.WebResult{{
			Title:   summary.Title,
			Snippet: summary.Extract,
			URL:     pageURL,
		}}, nil
	}

	// No direct page: fall back to the search API.
	searchURL := fmt.Sprintf("%s/w/api.php?action=query&format=json&list=search&srsearch=%s&srlimit=%d",
		p.baseURL, url.QueryEscape(query), n)

	var searchResp wikiSearchResponse
	status, err = p.getJSON(ctx, searchURL, &searchResp)
	if err != nil {
		return nil, fmt.Errorf("search.Wikipedia: search: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search.Wikipedia: search returned status %d", status)
	}

	var results []model.WebResult
	for _, item := range searchResp.Query.Search {
		if len(results) >= n {
			break
		}
		if item.Title == "" || item.Snippet == "" {
			continue
		}
		results = append(results, model.WebResult{
			Title:   "Wikipedia: " + item.Title,
			Snippet: stripTags(item.Snippet),
			URL:     p.baseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(item.Title, " ", "_")),
		})
	}
	return results, nil
}

func (p *WikipediaProvider) getJSON(ctx context.Context, rawURL string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

// stripTags flattens an HTML fragment (search snippets carry highlight
// spans) into plain text.
func stripTags(fragment string) string {
	var sb strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			sb.Write(tokenizer.Text())
		}
	}
	return strings.TrimSpace(sb.String())
}

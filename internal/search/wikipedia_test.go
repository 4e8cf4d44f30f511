package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWikipedia_SummaryHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/rest_v1/page/summary/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"title": "Lewis Hamilton",
			"extract": "Lewis Hamilton is a British racing driver who has won multiple world championships.",
			"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/Lewis_Hamilton"}}
		}`))
	}))
	defer srv.Close()

	p := NewWikipediaProvider(srv.Client(), srv.URL)
	results, err := p.Search(context.Background(), "Lewis Hamilton", 2)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Title != "Lewis Hamilton" {
		t.Errorf("Title = %q", results[0].Title)
	}
	if results[0].URL != "https://en.wikipedia.org/wiki/Lewis_Hamilton" {
		t.Errorf("URL = %q", results[0].URL)
	}
}

func TestWikipedia_FallsBackToSearchAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/rest_v1/page/summary/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"query": {"search": [
				{"title": "Monza Circuit", "snippet": "The <span class=\"searchmatch\">Monza</span> circuit hosts the Italian Grand Prix."}
			]}
		}`))
	}))
	defer srv.Close()

	p := NewWikipediaProvider(srv.Client(), srv.URL)
	results, err := p.Search(context.Background(), "monza race history", 2)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if !strings.HasPrefix(results[0].Title, "Wikipedia: ") {
		t.Errorf("Title = %q", results[0].Title)
	}
	if strings.Contains(results[0].Snippet, "<span") {
		t.Errorf("Snippet = %q, want HTML stripped", results[0].Snippet)
	}
	if !strings.Contains(results[0].Snippet, "Monza") {
		t.Errorf("Snippet = %q, want text preserved", results[0].Snippet)
	}
}

func TestWikipedia_ShortExtractIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/rest_v1/page/summary/") {
			w.Write([]byte(`{"title": "Stub", "extract": "Too short."}`))
			return
		}
		w.Write([]byte(`{"query": {"search": []}}`))
	}))
	defer srv.Close()

	p := NewWikipediaProvider(srv.Client(), srv.URL)
	results, err := p.Search(context.Background(), "stub topic", 2)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0 for stub extract", len(results))
	}
}

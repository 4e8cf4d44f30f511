package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/agent")
	t.Setenv("LLM_API_KEY", "test-key")
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LLM_API_KEY", "k")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/agent")
	t.Setenv("LLM_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without LLM_API_KEY")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.MaxResponseTime != 45*time.Second {
		t.Errorf("MaxResponseTime = %v, want 45s", cfg.MaxResponseTime)
	}
	if cfg.BreakerThreshold != 5 {
		t.Errorf("BreakerThreshold = %d, want 5", cfg.BreakerThreshold)
	}
	if cfg.RateLimitInterval != 2*time.Second {
		t.Errorf("RateLimitInterval = %v, want 2s", cfg.RateLimitInterval)
	}
	if cfg.PromptCap != 16384 {
		t.Errorf("PromptCap = %d, want 16384", cfg.PromptCap)
	}
}

func TestLoad_PlainSecondsDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("LLM_TIMEOUT", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LLMTimeout != 12*time.Second {
		t.Errorf("LLMTimeout = %v, want 12s", cfg.LLMTimeout)
	}
}

func TestLoadDomains_DefaultsWhenUnset(t *testing.T) {
	table, err := LoadDomains("")
	if err != nil {
		t.Fatalf("LoadDomains() error: %v", err)
	}
	if len(table.Domains) == 0 {
		t.Fatal("default table has no domains")
	}
}

func TestLoadDomains_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.yaml")
	payload := `
domains:
  - key: chess
    name: Chess
    keywords: [chess, grandmaster, opening]
    explicit_indicators: [magnus, carlsen]
    source_types: [chess_data]
    override_prefixes: [CHESS_COACH]
    prefix: "♟️ "
    priority_boost: 1.5
`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadDomains(path)
	if err != nil {
		t.Fatalf("LoadDomains() error: %v", err)
	}
	if len(table.Domains) != 1 {
		t.Fatalf("got %d domains, want 1", len(table.Domains))
	}
	d := table.Domains[0]
	if d.Key != "chess" || d.PriorityBoost != 1.5 {
		t.Errorf("domain = %+v", d)
	}
	// Term lists fall back to defaults when the file omits them.
	if len(table.AmbiguousTerms) == 0 || len(table.FillerWords) == 0 {
		t.Error("term list defaults not applied")
	}
}

func TestLoadDomains_EmptyTableRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("domains: []"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDomains(path); err == nil {
		t.Fatal("expected error for empty domain table")
	}
}

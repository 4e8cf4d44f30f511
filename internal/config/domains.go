package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pulseline-ai/agent-backend/internal/domain"
)

// LoadDomains reads the declarative domain table from a YAML file. An empty
// path (or missing file) selects the compiled-in defaults. Declaration order
// in the file is preserved; it breaks score ties.
func LoadDomains(path string) (*domain.Table, error) {
	if path == "" {
		return domain.DefaultTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("domains file not found, using defaults", "path", path)
			return domain.DefaultTable(), nil
		}
		return nil, fmt.Errorf("config.LoadDomains: %w", err)
	}

	var table domain.Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("config.LoadDomains: parse: %w", err)
	}
	if len(table.Domains) == 0 {
		return nil, fmt.Errorf("config.LoadDomains: %s declares no domains", path)
	}

	// The term lists are tuning data; fall back per-list when a file only
	// declares domains.
	defaults := domain.DefaultTable()
	if len(table.AmbiguousTerms) == 0 {
		table.AmbiguousTerms = defaults.AmbiguousTerms
	}
	if len(table.ContextualTerms) == 0 {
		table.ContextualTerms = defaults.ContextualTerms
	}
	if len(table.FillerWords) == 0 {
		table.FillerWords = defaults.FillerWords
	}

	slog.Info("domain table loaded", "path", path, "domains", len(table.Domains))
	return &table, nil
}

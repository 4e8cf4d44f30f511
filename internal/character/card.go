// Package character loads the persona card that shapes the agent's voice.
package character

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Section length caps keep oversized cards from swamping the prompt.
const (
	maxSystemChars   = 1500
	maxBioChars      = 1000
	maxStyleChars    = 600
	maxExampleChars  = 800
	maxExampleCount  = 3
)

// Card is a persona definition. The JSON layout follows the common
// character-card convention: bio and adjectives as arrays, style notes and
// example interactions optional.
type Card struct {
	Name       string   `json:"name"`
	System     string   `json:"system,omitempty"`
	Bio        []string `json:"bio,omitempty"`
	Adjectives []string `json:"adjectives,omitempty"`
	Style      []string `json:"style,omitempty"`
	Examples   []string `json:"messageExamples,omitempty"`
}

// Load reads a card from a JSON file. A missing file is not an error: the
// pipeline runs persona-less with the returned default.
func Load(path string) (*Card, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("character card not found, using default persona", "path", path)
			return Default(), nil
		}
		return nil, fmt.Errorf("character.Load: %w", err)
	}

	var c Card
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("character.Load: parse: %w", err)
	}
	if c.Name == "" {
		c.Name = Default().Name
	}
	slog.Info("character card loaded", "path", path, "name", c.Name)
	return &c, nil
}

// Default returns the built-in persona used when no card is configured.
func Default() *Card {
	return &Card{Name: "the assistant"}
}

// PromptBlock renders the card as the character-profile prompt section.
// Empty cards render to "".
func (c *Card) PromptBlock() string {
	var parts []string
	if c.System != "" {
		parts = append(parts, "SYSTEM: "+truncate(c.System, maxSystemChars))
	}
	if len(c.Bio) > 0 {
		parts = append(parts, "BIO: "+truncate(strings.Join(c.Bio, " | "), maxBioChars))
	}
	if len(c.Adjectives) > 0 {
		parts = append(parts, "PERSONALITY: "+strings.Join(c.Adjectives, ", "))
	}
	if len(c.Style) > 0 {
		parts = append(parts, "STYLE: "+truncate(strings.Join(c.Style, " | "), maxStyleChars))
	}
	if len(c.Examples) > 0 {
		examples := c.Examples
		if len(examples) > maxExampleCount {
			examples = examples[:maxExampleCount]
		}
		parts = append(parts, "EXAMPLE INTERACTIONS:\n"+truncate(strings.Join(examples, "\n"), maxExampleChars))
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

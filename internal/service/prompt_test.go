package service

import (
	"strings"
	"testing"
	"time"

	"github.com/pulseline-ai/agent-backend/internal/character"
	"github.com/pulseline-ai/agent-backend/internal/domain"
	"github.com/pulseline-ai/agent-backend/internal/model"
)

var promptNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func newTestBuilder(maxChars int) *PromptBuilder {
	persona := &character.Card{
		Name:       "Ace",
		Bio:        []string{"veteran sports analyst"},
		Adjectives: []string{"sharp", "dry-witted"},
	}
	return NewPromptBuilder(persona, domain.DefaultTable(), maxChars)
}

func TestBuild_SectionOrder(t *testing.T) {
	b := newTestBuilder(0)

	prompt := b.Build(PromptInput{
		Query:               "how is the team doing",
		Now:                 promptNow,
		ConversationContext: "RECENT CONVERSATION:\nUSER: hello",
		Verdict:             model.DomainVerdict{Primary: "f1", MatchedTokens: []string{"team"}},
		Chunks: []model.Chunk{
			makeOverride("Never mention sponsors"),
			makeChunk("The team finished second last year.", 0.3),
		},
		WebResults: []model.WebResult{
			{Title: "News", Snippet: "The team announced a new driver.", URL: "https://example.com"},
		},
	})

	markers := []string{
		"Current time: 2025-03-14",
		"BIO: veteran sports analyst",
		"RECENT CONVERSATION:",
		"CRITICAL BEHAVIOR OVERRIDES",
		"DOMAIN DETECTED: FORMULA 1 RACING",
		"KNOWLEDGE BASE CONTEXT",
		"WEB SEARCH RESULTS",
		"ACCURACY GUIDELINES",
		"IMPORTANT INSTRUCTIONS",
		"User: how is the team doing",
		"Respond as Ace in first person:",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(prompt, m)
		if idx < 0 {
			t.Fatalf("prompt missing section %q\n%s", m, prompt)
		}
		if idx < last {
			t.Errorf("section %q out of order", m)
		}
		last = idx
	}
}

func TestBuild_OverridesPrecedeEvidence(t *testing.T) {
	b := newTestBuilder(0)

	prompt := b.Build(PromptInput{
		Query: "anything",
		Now:   promptNow,
		Chunks: []model.Chunk{
			makeChunk("regular knowledge", 0.3),
			makeOverride("Never use the hashtag #X"),
		},
		WebResults: []model.WebResult{{Title: "t", Snippet: "web snippet", URL: "https://x"}},
	})

	overrideIdx := strings.Index(prompt, "Never use the hashtag #X")
	kbIdx := strings.Index(prompt, "KNOWLEDGE BASE CONTEXT")
	webIdx := strings.Index(prompt, "WEB SEARCH RESULTS")
	if overrideIdx < 0 || kbIdx < 0 || webIdx < 0 {
		t.Fatalf("prompt missing blocks:\n%s", prompt)
	}
	if overrideIdx > kbIdx || overrideIdx > webIdx {
		t.Error("override block must precede KB and web blocks")
	}
}

func TestBuild_CapTrimsEvidenceNotGuardrails(t *testing.T) {
	b := newTestBuilder(2000)

	big := strings.Repeat("filler knowledge content. ", 200) // ~5k chars
	prompt := b.Build(PromptInput{
		Query: "anything",
		Now:   promptNow,
		Chunks: []model.Chunk{
			makeOverride("Keep answers short"),
			makeChunk(big, 0.3),
		},
		WebResults: []model.WebResult{{Title: "t", Snippet: big, URL: "https://x"}},
	})

	if len(prompt) > 2100 {
		t.Errorf("prompt length %d exceeds cap", len(prompt))
	}
	if !strings.Contains(prompt, "Keep answers short") {
		t.Error("override trimmed by size cap")
	}
	if !strings.Contains(prompt, "ACCURACY GUIDELINES") {
		t.Error("guardrails trimmed by size cap")
	}
	if !strings.Contains(prompt, "Respond as Ace in first person:") {
		t.Error("terminal line trimmed by size cap")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	b := newTestBuilder(0)
	in := PromptInput{
		Query:  "who won at monza",
		Now:    promptNow,
		Chunks: []model.Chunk{makeChunk("race data", 0.2)},
	}
	if b.Build(in) != b.Build(in) {
		t.Error("identical inputs produced different prompts")
	}
}

func TestBuild_Clarification(t *testing.T) {
	b := newTestBuilder(0)

	prompt := b.Build(PromptInput{
		Query:     "what are the standings right now",
		Now:       promptNow,
		Verdict:   model.DomainVerdict{Primary: "f1"},
		Clarify:   true,
		QueryType: QueryTypeCurrentStats,
	})

	if !strings.Contains(prompt, "I don't have access to current season statistics") {
		t.Errorf("clarification prompt missing disclosure:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Formula1.com") {
		t.Error("clarification prompt missing domain sources")
	}
	if !strings.Contains(prompt, "Respond as Ace with the smart redirect:") {
		t.Error("clarification prompt missing terminal line")
	}
}

func TestBuild_NoContextInstructions(t *testing.T) {
	b := newTestBuilder(0)

	prompt := b.Build(PromptInput{Query: "hi", Now: promptNow})

	if !strings.Contains(prompt, "Use your general knowledge") {
		t.Errorf("no-context prompt missing general instructions:\n%s", prompt)
	}
	if strings.Contains(prompt, "KNOWLEDGE BASE CONTEXT") || strings.Contains(prompt, "WEB SEARCH RESULTS") {
		t.Error("empty evidence blocks rendered")
	}
}

package service

import (
	"strings"
	"testing"

	"github.com/pulseline-ai/agent-backend/internal/model"
)

func TestFormatParagraphs_ShortUnchanged(t *testing.T) {
	text := "Just a short reply."
	if got := FormatParagraphs(text); got != text {
		t.Errorf("FormatParagraphs() = %q, want unchanged", got)
	}
}

func TestFormatParagraphs_GroupsSentences(t *testing.T) {
	text := "The season opener delivered plenty of drama from the very first lap of running. " +
		"Both title contenders traded fastest laps throughout the afternoon session. " +
		"Strategy calls decided the podium in the end. " +
		"The next round arrives in two weeks."
	got := FormatParagraphs(text)

	if !strings.Contains(got, "\n\n") {
		t.Errorf("expected paragraph breaks in:\n%q", got)
	}
	for _, fragment := range []string{"season opener", "next round"} {
		if !strings.Contains(got, fragment) {
			t.Errorf("formatted text lost content %q", fragment)
		}
	}
}

func TestAppendWebCitations_RealURLsOnly(t *testing.T) {
	results := []model.WebResult{
		{Title: "Race report", URL: "https://example.com/report"},
		{Title: "Placeholder", URL: model.NoSourceURL},
	}

	got := AppendWebCitations("The answer.", results)

	if !strings.Contains(got, "**Sources:**") {
		t.Fatalf("missing sources block: %q", got)
	}
	if !strings.Contains(got, "https://example.com/report") {
		t.Error("real URL missing from citations")
	}
	if strings.Contains(got, model.NoSourceURL) {
		t.Error("placeholder URL cited")
	}
}

func TestAppendWebCitations_NoRealURLs(t *testing.T) {
	got := AppendWebCitations("The answer.", []model.WebResult{{Title: "x", URL: model.NoSourceURL}})
	if got != "The answer." {
		t.Errorf("AppendWebCitations() = %q, want unchanged", got)
	}
}

func TestEnhanceContextualQuery(t *testing.T) {
	convo := "RECENT CONVERSATION:\nUSER: how did verstappen qualify\nASSISTANT: He took pole position."
	keywords := []string{"verstappen", "qualifying", "lakers"}

	enhanced, ok := EnhanceContextualQuery("any updates?", convo, keywords)
	if !ok {
		t.Fatal("expected enhancement for contextual follow-up")
	}
	if !strings.Contains(enhanced, "verstappen") {
		t.Errorf("enhanced query = %q, want carried keyword", enhanced)
	}
	if !strings.HasPrefix(enhanced, "any updates?") {
		t.Errorf("enhanced query = %q, want original text preserved", enhanced)
	}
}

func TestEnhanceContextualQuery_NonContextualUnchanged(t *testing.T) {
	enhanced, ok := EnhanceContextualQuery("who won at monza", "USER: hello", []string{"monza"})
	if ok {
		t.Error("non-contextual query should not be enhanced")
	}
	if enhanced != "who won at monza" {
		t.Errorf("query = %q, want unchanged", enhanced)
	}
}

func TestEnhanceContextualQuery_NoContext(t *testing.T) {
	if _, ok := EnhanceContextualQuery("any updates?", "", []string{"nba"}); ok {
		t.Error("enhancement without conversation context")
	}
}

package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pulseline-ai/agent-backend/internal/breaker"
)

// mockLLMProvider implements LLMProvider for testing.
type mockLLMProvider struct {
	responses []string
	errs      []error
	calls     int

	capturedMessages []Message
	capturedMax      int
	capturedTemp     float64
}

func (m *mockLLMProvider) Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error) {
	idx := m.calls
	m.calls++
	m.capturedMessages = messages
	m.capturedMax = maxTokens
	m.capturedTemp = temperature
	if idx < len(m.errs) && m.errs[idx] != nil {
		return "", m.errs[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	if len(m.responses) > 0 {
		return m.responses[len(m.responses)-1], nil
	}
	return "", m.errsLast()
}

func (m *mockLLMProvider) errsLast() error {
	if len(m.errs) > 0 {
		return m.errs[len(m.errs)-1]
	}
	return nil
}

func newLLMService(p LLMProvider) (*LLMService, *breaker.Registry) {
	breakers := breaker.New(5, 300*time.Second)
	svc := NewLLMService(p, breakers, 30*time.Second)
	svc.sleepFunc = func(ctx context.Context, d time.Duration) {}
	return svc, breakers
}

func TestGenerate_Success(t *testing.T) {
	p := &mockLLMProvider{responses: []string{"Here is the answer."}}
	svc, breakers := newLLMService(p)

	got, err := svc.Generate(context.Background(), "system header", "the prompt", GenParams{MaxTokens: 400, Temperature: 0.7})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != "Here is the answer." {
		t.Errorf("Generate() = %q", got)
	}
	if len(p.capturedMessages) != 2 || p.capturedMessages[0].Role != "system" || p.capturedMessages[1].Role != "user" {
		t.Errorf("messages = %+v, want system+user", p.capturedMessages)
	}
	if got := breakers.Snapshot()[breaker.ServiceLLM].Failures; got != 0 {
		t.Errorf("breaker failures = %d, want 0", got)
	}
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	p := &mockLLMProvider{
		errs:      []error{fmt.Errorf("transient"), nil},
		responses: []string{"", "Recovered answer."},
	}
	svc, _ := newLLMService(p)

	got, err := svc.Generate(context.Background(), "", "prompt", GenParams{MaxTokens: 400, Temperature: 0.7})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != "Recovered answer." {
		t.Errorf("Generate() = %q", got)
	}
	if p.calls != 2 {
		t.Errorf("provider called %d times, want 2", p.calls)
	}
}

func TestGenerate_ExhaustedRetriesRecordFailure(t *testing.T) {
	p := &mockLLMProvider{errs: []error{fmt.Errorf("down"), fmt.Errorf("down"), fmt.Errorf("down")}}
	svc, breakers := newLLMService(p)

	_, err := svc.Generate(context.Background(), "", "prompt", GenParams{MaxTokens: 400, Temperature: 0.7})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if p.calls != MaxLLMRetries+1 {
		t.Errorf("provider called %d times, want %d", p.calls, MaxLLMRetries+1)
	}
	if got := breakers.Snapshot()[breaker.ServiceLLM].Failures; got != 1 {
		t.Errorf("breaker failures = %d, want 1", got)
	}
}

func TestGenerate_NoSystemMessageWhenEmpty(t *testing.T) {
	p := &mockLLMProvider{responses: []string{"ok then."}}
	svc, _ := newLLMService(p)

	if _, err := svc.Generate(context.Background(), "", "prompt", GenParams{MaxTokens: 100, Temperature: 0.5}); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(p.capturedMessages) != 1 || p.capturedMessages[0].Role != "user" {
		t.Errorf("messages = %+v, want single user message", p.capturedMessages)
	}
}

func TestParamsForQuery(t *testing.T) {
	smallTalk := ParamsForQuery("hi there", false)
	if smallTalk.MaxTokens != 150 || smallTalk.Temperature != 0.9 {
		t.Errorf("small talk params = %+v", smallTalk)
	}

	analytical := ParamsForQuery("current standings for the championship this season", false)
	if analytical.MaxTokens != 600 || analytical.Temperature != 0.4 {
		t.Errorf("analytical params = %+v", analytical)
	}

	def := ParamsForQuery("tell me something interesting about racing history", false)
	if def.MaxTokens != 400 || def.Temperature != 0.7 {
		t.Errorf("default params = %+v", def)
	}

	voice := ParamsForQuery("tell me something interesting about racing history", true)
	if voice.MaxTokens != 200 {
		t.Errorf("voice MaxTokens = %d, want halved", voice.MaxTokens)
	}
}

func TestLimitResponseLength_ShortPassesThrough(t *testing.T) {
	text := "One. Two. Three."
	if got := LimitResponseLength(text); got != text {
		t.Errorf("LimitResponseLength() = %q, want unchanged", got)
	}
}

func TestLimitResponseLength_CapsAtFive(t *testing.T) {
	text := "Alpha is here. Beta follows. Gamma next. Delta after. Epsilon too. Zeta extra. Eta more."
	got := LimitResponseLength(text)

	if n := len(splitSentences(got)); n != 5 {
		t.Errorf("sentences = %d, want 5: %q", n, got)
	}
	if strings.Contains(got, "Zeta") {
		t.Error("truncated sentence still present")
	}
}

func TestLimitResponseLength_DataDrivenKeepsFinalNumericSentence(t *testing.T) {
	text := "He had a strong season. The team improved steadily. Early results were mixed. " +
		"Mid-season upgrades helped. Qualifying pace sharpened. The crew found consistency. " +
		"Late races went well. He finished with 308 points in total."
	got := LimitResponseLength(text)

	sentences := splitSentences(got)
	if len(sentences) != 6 {
		t.Fatalf("sentences = %d, want 6: %q", len(sentences), got)
	}
	if sentences[len(sentences)-1] != "He finished with 308 points in total." {
		t.Errorf("final sentence = %q, want the numeric summary preserved", sentences[len(sentences)-1])
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First one. Second one! Third one? Done")
	want := []string{"First one.", "Second one!", "Third one?", "Done"}
	if len(got) != len(want) {
		t.Fatalf("splitSentences() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

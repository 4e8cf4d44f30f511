package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pulseline-ai/agent-backend/internal/breaker"
)

const (
	// DefaultLLMTimeout bounds one completion attempt.
	DefaultLLMTimeout = 30 * time.Second
	// MaxLLMRetries is how many times a failed completion is retried.
	MaxLLMRetries = 2

	maxSentencesDefault    = 5
	maxSentencesDataDriven = 6
	minSentences           = 3
)

// ErrEmptyCompletion is returned when the provider yields no content.
var ErrEmptyCompletion = errors.New("empty response from llm provider")

// Message is one chat message sent to the LLM provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMProvider abstracts the completion backend. Implementations must honor
// the caller's deadline.
type LLMProvider interface {
	Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error)
}

// GenParams tune one generation call.
type GenParams struct {
	MaxTokens   int
	Temperature float64
}

// ParamsForQuery selects generation parameters by query shape: small talk
// stays short and playful, analytical queries get room and low temperature.
// Voice responses are halved so spoken replies stay brief.
func ParamsForQuery(query string, voice bool) GenParams {
	p := GenParams{MaxTokens: 400, Temperature: 0.7}
	switch {
	case IsStatisticalQuery(query):
		p = GenParams{MaxTokens: 600, Temperature: 0.4}
	case IsSmallTalk(query):
		p = GenParams{MaxTokens: 150, Temperature: 0.9}
	}
	if voice {
		p.MaxTokens /= 2
	}
	return p
}

// LLMService performs single-shot generation with timeout, bounded retries,
// breaker accounting, and post-generation length limiting.
type LLMService struct {
	provider  LLMProvider
	breakers  *breaker.Registry
	timeout   time.Duration
	sleepFunc func(ctx context.Context, d time.Duration)
}

// NewLLMService creates an LLMService. A non-positive timeout selects
// DefaultLLMTimeout.
func NewLLMService(provider LLMProvider, breakers *breaker.Registry, timeout time.Duration) *LLMService {
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	return &LLMService{
		provider:  provider,
		breakers:  breakers,
		timeout:   timeout,
		sleepFunc: sleepCtx,
	}
}

// Generate runs one completion. The assembled prompt travels as the single
// user message; systemPrompt (may be empty) carries the character header.
// On exhausted retries the breaker records a failure and the error surfaces
// for the orchestrator to convert into a fallback response.
func (s *LLMService) Generate(ctx context.Context, systemPrompt, prompt string, p GenParams) (string, error) {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	var lastErr error
	for attempt := 0; attempt <= MaxLLMRetries; attempt++ {
		if attempt > 0 {
			s.sleepFunc(ctx, time.Duration(attempt)*time.Second)
			if ctx.Err() != nil {
				break
			}
			slog.Info("llm retrying", "attempt", attempt+1)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		content, err := s.provider.Complete(attemptCtx, messages, p.MaxTokens, p.Temperature)
		cancel()

		if err == nil && content == "" {
			err = ErrEmptyCompletion
		}
		if err != nil {
			lastErr = err
			slog.Warn("llm completion failed", "attempt", attempt+1, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		s.breakers.RecordSuccess(breaker.ServiceLLM)
		return LimitResponseLength(content), nil
	}

	s.breakers.RecordFailure(breaker.ServiceLLM)
	return "", fmt.Errorf("service.Generate: retries exhausted: %w", lastErr)
}

var numericSentence = regexp.MustCompile(`\d+%?|\$\d+|\d+\.\d+`)

// LimitResponseLength caps a generated response to a few sentences: five
// normally, six when the output is data-driven. When truncating a
// data-driven output whose final sentence carries numbers, that final
// sentence is preserved.
func LimitResponseLength(text string) string {
	sentences := splitSentences(text)
	if len(sentences) <= minSentences {
		return text
	}

	dataDriven := false
	for _, s := range sentences {
		if numericSentence.MatchString(s) {
			dataDriven = true
			break
		}
	}

	max := maxSentencesDefault
	if dataDriven {
		max = maxSentencesDataDriven
	}
	if len(sentences) <= max {
		return text
	}

	last := sentences[len(sentences)-1]
	if dataDriven && numericSentence.MatchString(last) {
		return strings.Join(append(sentences[:max-1:max-1], last), " ")
	}
	return strings.Join(sentences[:max], " ")
}

// splitSentences splits on terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(strings.TrimSpace(text))
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			// End of sentence when followed by whitespace or end of text.
			if i == len(runes)-1 || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				s := strings.TrimSpace(current.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
				for i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t') {
					i++
				}
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// Package openaiclient adapts an OpenAI-compatible API into the pipeline's
// LLM and embedding provider interfaces. Any backend speaking the same wire
// format works via the base URL.
package openaiclient

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/pulseline-ai/agent-backend/internal/service"
)

// Client implements service.LLMProvider and repository.QueryEmbedder.
type Client struct {
	client     openai.Client
	model      string
	embedModel string
}

// New creates a Client. baseURL is optional; empty selects the public API.
func New(apiKey, baseURL, model, embedModel string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		client:     openai.NewClient(opts...),
		model:      model,
		embedModel: embedModel,
	}
}

// Complete runs one chat completion. The caller's context carries the
// deadline; the SDK aborts the request when it expires.
func (c *Client) Complete(ctx context.Context, messages []service.Message, maxTokens int, temperature float64) (string, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	for _, m := range messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    msgs,
		MaxTokens:   param.NewOpt(int64(maxTokens)),
		Temperature: param.NewOpt(temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openaiclient.Complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openaiclient.Complete: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns one vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openaiclient.Embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openaiclient.Embed: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

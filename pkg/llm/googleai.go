// Package llm wraps the language-model client behind the small completion
// interface the answer pipeline depends on.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/schema"

	"github.com/hautlabor/clinic-assist/pkg/agent"
)

// GoogleAI implements agent.Model on top of langchaingo's Google AI client.
type GoogleAI struct {
	model llms.Model
}

// NewGoogleAI creates a client for the given model name.
func NewGoogleAI(ctx context.Context, apiKey, modelName string) (*GoogleAI, error) {
	model, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google AI client: %w", err)
	}
	return &GoogleAI{model: model}, nil
}

// NewFromModel wraps an already constructed langchaingo model, mainly for
// tests.
func NewFromModel(model llms.Model) *GoogleAI {
	return &GoogleAI{model: model}
}

// Complete generates a single completion in JSON mode. Transport failures
// map to agent.ErrModelUnavailable; an empty choice list maps to
// agent.ErrMalformedResponse.
func (g *GoogleAI) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	resp, err := g.model.GenerateContent(ctx, content,
		llms.WithJSONMode(),
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", agent.ErrModelUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", agent.ErrMalformedResponse)
	}
	return resp.Choices[0].Content, nil
}

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/hautlabor/clinic-assist/pkg/agent"
)

type fakeModel struct {
	response *llms.ContentResponse
	err      error
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return m.response, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	g := NewFromModel(&fakeModel{response: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: `{"answer": "ok"}`}},
	}})

	out, err := g.Complete(context.Background(), "prompt", 0.2, 256)
	require.NoError(t, err)
	assert.Equal(t, `{"answer": "ok"}`, out)
}

func TestCompleteTransportError(t *testing.T) {
	g := NewFromModel(&fakeModel{err: errors.New("connection refused")})

	_, err := g.Complete(context.Background(), "prompt", 0.2, 256)
	assert.ErrorIs(t, err, agent.ErrModelUnavailable)
}

func TestCompleteNoChoices(t *testing.T) {
	g := NewFromModel(&fakeModel{response: &llms.ContentResponse{}})

	_, err := g.Complete(context.Background(), "prompt", 0.2, 256)
	assert.ErrorIs(t, err, agent.ErrMalformedResponse)
}

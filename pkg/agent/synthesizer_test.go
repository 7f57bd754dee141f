package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel returns canned outputs in order, or a fixed error.
type scriptedModel struct {
	outputs []string
	err     error
	calls   int
	prompts []string
}

func (m *scriptedModel) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	out := m.outputs[0]
	if len(m.outputs) > 1 {
		m.outputs = m.outputs[1:]
	}
	return out, nil
}

func testBundle() EvidenceBundle {
	return EvidenceBundle{
		Passages: []RetrievedPassage{
			{Text: "Dr. Pfahl leads the clinic.", SourceID: "https://haut-labor.de/team", Title: "Our Team", Relevance: 0.9},
		},
		Results: []SearchResult{
			{Title: "Botox prices 2026", URL: "https://example.com/prices", Snippet: "...", Provider: "tavily"},
		},
	}
}

func TestSynthesizeEmptyBundleSkipsModel(t *testing.T) {
	model := &scriptedModel{outputs: []string{`{"answer": "should not be called"}`}}
	s := NewSynthesizer(model, SynthesizerConfig{
		ClinicContact: "+49 (0) 157 834 488 90 or info@haut-labor.de",
	})

	ans, err := s.Synthesize(context.Background(), "anything", EvidenceBundle{})
	require.NoError(t, err)

	assert.Zero(t, model.calls)
	assert.Contains(t, ans.Body, "could not find verified information")
	assert.Contains(t, ans.Body, "+49 (0) 157 834 488 90")
	assert.Empty(t, ans.CitedSources)
	assert.True(t, ans.HasDisclaimer(DisclaimerReferral))
}

func TestSynthesizeModelErrorReturnsFallback(t *testing.T) {
	model := &scriptedModel{err: errors.New("deadline exceeded")}
	s := NewSynthesizer(model, SynthesizerConfig{})

	ans, err := s.Synthesize(context.Background(), "question", testBundle())
	require.ErrorIs(t, err, ErrModelUnavailable)

	assert.Equal(t, FallbackBody, ans.Body)
	assert.Empty(t, ans.CitedSources)
}

func TestSynthesizeMalformedOutputReturnsFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no JSON at all", "I think the answer is probably Botox."},
		{"broken JSON", `{"answer": "unterminated`},
		{"empty answer body", `{"answer": "  ", "cited_sources": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &scriptedModel{outputs: []string{tt.raw}}
			s := NewSynthesizer(model, SynthesizerConfig{})

			ans, err := s.Synthesize(context.Background(), "question", testBundle())
			require.ErrorIs(t, err, ErrMalformedResponse)
			assert.Equal(t, FallbackBody, ans.Body)
			assert.Empty(t, ans.CitedSources)
		})
	}
}

func TestSynthesizeFiltersInventedCitations(t *testing.T) {
	model := &scriptedModel{outputs: []string{
		`{"answer": "Dr. Pfahl leads the clinic.", "cited_sources": ["https://haut-labor.de/team", "https://invented.example/nope", "https://example.com/prices"]}`,
	}}
	s := NewSynthesizer(model, SynthesizerConfig{})

	ans, err := s.Synthesize(context.Background(), "Who leads the clinic?", testBundle())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://haut-labor.de/team", "https://example.com/prices"}, ans.CitedSources)
}

func TestSynthesizeParsesFencedJSON(t *testing.T) {
	model := &scriptedModel{outputs: []string{
		"```json\n{\"answer\": \"Grounded answer.\", \"cited_sources\": [\"https://haut-labor.de/team\"]}\n```",
	}}
	s := NewSynthesizer(model, SynthesizerConfig{})

	ans, err := s.Synthesize(context.Background(), "question", testBundle())
	require.NoError(t, err)
	assert.Equal(t, "Grounded answer.", ans.Body)
	assert.Equal(t, []string{"https://haut-labor.de/team"}, ans.CitedSources)
}

func TestSynthesisPromptListsOnlyBundleItems(t *testing.T) {
	model := &scriptedModel{outputs: []string{`{"answer": "ok"}`}}
	s := NewSynthesizer(model, SynthesizerConfig{ClinicName: "Haut Labor Oldenburg"})

	_, err := s.Synthesize(context.Background(), "question", testBundle())
	require.NoError(t, err)
	require.Len(t, model.prompts, 1)

	prompt := model.prompts[0]
	assert.Contains(t, prompt, "https://haut-labor.de/team")
	assert.Contains(t, prompt, "https://example.com/prices")
	assert.Contains(t, prompt, "Haut Labor Oldenburg")
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	passages []RetrievedPassage
	err      error
	calls    int
}

func (r *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]RetrievedPassage, error) {
	r.calls++
	return r.passages, r.err
}

type fakeSearcher struct {
	results  []SearchResult
	err      error
	calls    int
	gotQuery string
}

func (s *fakeSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	s.calls++
	s.gotQuery = query
	return s.results, s.err
}

func newTestOrchestrator(r Retriever, s Searcher, m Model) *Orchestrator {
	classifier := NewClassifier(ClassifierConfig{})
	synthesizer := NewSynthesizer(m, SynthesizerConfig{
		ClinicName:    "Haut Labor Oldenburg",
		ClinicContact: "+49 (0) 157 834 488 90 or info@haut-labor.de",
	})
	return NewOrchestrator(r, s, classifier, synthesizer, OrchestratorConfig{})
}

func TestCycleKnowledgeBaseOnly(t *testing.T) {
	retriever := &fakeRetriever{passages: []RetrievedPassage{
		{Text: "Dr. Larisa Pfahl founded the clinic.", SourceID: "https://haut-labor.de/team", Title: "Team", Relevance: 0.9},
		{Text: "She specializes in aesthetic dermatology.", SourceID: "https://haut-labor.de/about", Title: "About", Relevance: 0.8},
		{Text: "Consultations are by appointment.", SourceID: "https://haut-labor.de/contact", Title: "Contact", Relevance: 0.7},
	}}
	searcher := &fakeSearcher{}
	model := &scriptedModel{outputs: []string{
		`{"answer": "Dr. Larisa Pfahl founded the clinic [https://haut-labor.de/team] and specializes in aesthetic dermatology [https://haut-labor.de/about]. Consultations are by appointment [https://haut-labor.de/contact].",
		  "cited_sources": ["https://haut-labor.de/team", "https://haut-labor.de/about", "https://haut-labor.de/contact"]}`,
	}}

	o := newTestOrchestrator(retriever, searcher, model)
	cycle, err := o.Run(context.Background(), "Tell me about Dr. Larisa Pfahl")
	require.NoError(t, err)

	assert.Equal(t, StateDone, cycle.State)
	assert.False(t, cycle.Decision.NeedsSearch)
	assert.Zero(t, searcher.calls, "strong retrieval must not trigger search")
	assert.Len(t, cycle.Answer.CitedSources, 3)
	assert.True(t, cycle.Answer.HasDisclaimer(DisclaimerReferral))
	assert.True(t, cycle.Answer.HasDisclaimer(DisclaimerSourceVerification))
}

func TestCyclePricingTriggersSearch(t *testing.T) {
	retriever := &fakeRetriever{passages: []RetrievedPassage{
		{Text: "We offer Botox.", SourceID: "https://haut-labor.de/botox", Title: "Botox", Relevance: 0.9},
		{Text: "Treatment details.", SourceID: "https://haut-labor.de/treatments", Title: "Treatments", Relevance: 0.9},
	}}
	searcher := &fakeSearcher{results: []SearchResult{
		{Title: "Botox cost survey", URL: "https://pricing.example/botox", Snippet: "...", Provider: "tavily"},
	}}
	model := &scriptedModel{outputs: []string{
		`{"answer": "Current German market prices are surveyed at [https://pricing.example/botox].",
		  "cited_sources": ["https://pricing.example/botox", "https://fabricated.example/page"]}`,
	}}

	o := newTestOrchestrator(retriever, searcher, model)
	cycle, err := o.Run(context.Background(), "What are the latest Botox prices in Germany?")
	require.NoError(t, err)

	assert.Equal(t, StateDone, cycle.State)
	require.True(t, cycle.Decision.NeedsSearch, "pricing keyword must trigger search despite strong retrieval")
	assert.Equal(t, 1, searcher.calls)
	assert.Contains(t, searcher.gotQuery, "What are the latest Botox prices in Germany?")
	assert.Contains(t, searcher.gotQuery, "Germany aesthetic clinic current market pricing")

	// Fabricated citation is dropped; only the provider-returned URL survives.
	assert.Equal(t, []string{"https://pricing.example/botox"}, cycle.Answer.CitedSources)
}

func TestCycleDoubleDegradation(t *testing.T) {
	retriever := &fakeRetriever{err: fmt.Errorf("embedding call: %w", ErrRetrievalUnavailable)}
	searcher := &fakeSearcher{err: fmt.Errorf("all providers failed: %w", ErrSearchUnavailable)}
	model := &scriptedModel{outputs: []string{`{"answer": "should never be called"}`}}

	o := newTestOrchestrator(retriever, searcher, model)
	cycle, err := o.Run(context.Background(), "Are there studies on Morpheus8?")
	require.NoError(t, err)

	assert.Equal(t, StateDone, cycle.State)
	assert.True(t, cycle.Decision.NeedsSearch, "research keyword triggers search")
	assert.Equal(t, 1, searcher.calls)
	assert.True(t, cycle.Evidence.IsEmpty())

	assert.Zero(t, model.calls, "empty bundle must never reach the model")
	assert.Empty(t, cycle.Answer.CitedSources)
	assert.Contains(t, cycle.Answer.Body, "could not find verified information")
	assert.True(t, cycle.Answer.HasDisclaimer(DisclaimerReferral))
}

func TestCycleMalformedModelOutput(t *testing.T) {
	retriever := &fakeRetriever{passages: []RetrievedPassage{
		{Text: "Info.", SourceID: "https://haut-labor.de/info", Relevance: 2.0},
	}}
	model := &scriptedModel{outputs: []string{"Sure! The treatment costs about 300 euros."}}

	o := newTestOrchestrator(retriever, &fakeSearcher{}, model)
	cycle, err := o.Run(context.Background(), "Tell me about the treatment")
	require.NoError(t, err)

	assert.Equal(t, StateDone, cycle.State)
	assert.Equal(t, FallbackBody, cycle.Answer.Body)
	assert.Empty(t, cycle.Answer.CitedSources)
	assert.True(t, cycle.Answer.HasDisclaimer(DisclaimerReferral))
}

func TestCycleModelUnavailable(t *testing.T) {
	retriever := &fakeRetriever{passages: []RetrievedPassage{
		{Text: "Info.", SourceID: "https://haut-labor.de/info", Relevance: 2.0},
	}}
	model := &scriptedModel{err: errors.New("connection refused")}

	o := newTestOrchestrator(retriever, &fakeSearcher{}, model)
	answer, err := o.Answer(context.Background(), "Tell me about the treatment")
	require.NoError(t, err)

	assert.Equal(t, FallbackBody, answer.Body)
}

func TestCycleNilSearcherDegrades(t *testing.T) {
	retriever := &fakeRetriever{}
	model := &scriptedModel{outputs: []string{`{"answer": "unused"}`}}

	o := newTestOrchestrator(retriever, nil, model)
	cycle, err := o.Run(context.Background(), "latest news")
	require.NoError(t, err)

	assert.Equal(t, StateDone, cycle.State)
	assert.True(t, cycle.Evidence.IsEmpty())
	assert.Zero(t, model.calls)
}

func TestCycleContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(&fakeRetriever{}, &fakeSearcher{}, &scriptedModel{outputs: []string{"{}"}})
	_, err := o.Run(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCycleNoOrphanCitations(t *testing.T) {
	retriever := &fakeRetriever{passages: []RetrievedPassage{
		{Text: "Info.", SourceID: "https://haut-labor.de/info", Relevance: 2.0},
	}}
	// The model cites a real source in the body but omits it from
	// cited_sources, and lists a fabricated one.
	model := &scriptedModel{outputs: []string{
		`{"answer": "The clinic offers this [https://haut-labor.de/info].", "cited_sources": ["https://nowhere.example/x"]}`,
	}}

	o := newTestOrchestrator(retriever, &fakeSearcher{}, model)
	cycle, err := o.Run(context.Background(), "Tell me about the treatment")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://haut-labor.de/info"}, cycle.Answer.CitedSources)
	assert.Contains(t, cycle.Answer.Body, "[https://haut-labor.de/info]")
}

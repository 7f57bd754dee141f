package websearch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hautlabor/clinic-assist/pkg/agent"
)

type stubProvider struct {
	name    string
	results []agent.SearchResult
	err     error
	calls   int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Search(ctx context.Context, query string) ([]agent.SearchResult, error) {
	p.calls++
	return p.results, p.err
}

func TestChainFirstProviderWins(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []agent.SearchResult{
		{Title: "hit", URL: "https://example.com/a", Provider: "primary"},
	}}
	fallback := &stubProvider{name: "fallback"}

	c := NewChain(time.Second, nil, primary, fallback)
	results, err := c.Search(context.Background(), "query")
	require.NoError(t, err)

	assert.Len(t, results, 1)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, fallback.calls)
}

func TestChainFallsBackOnError(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("quota exceeded")}
	fallback := &stubProvider{name: "fallback", results: []agent.SearchResult{
		{Title: "hit", URL: "https://example.com/b", Provider: "fallback"},
	}}

	c := NewChain(time.Second, nil, primary, fallback)
	results, err := c.Search(context.Background(), "query")
	require.NoError(t, err)

	assert.Len(t, results, 1)
	assert.Equal(t, "fallback", results[0].Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestChainFallsBackOnEmptyResults(t *testing.T) {
	primary := &stubProvider{name: "primary"}
	fallback := &stubProvider{name: "fallback", results: []agent.SearchResult{
		{Title: "hit", URL: "https://example.com/c", Provider: "fallback"},
	}}

	c := NewChain(time.Second, nil, primary, fallback)
	results, err := c.Search(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChainAllProvidersFail(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("down")}
	second := &stubProvider{name: "second", err: errors.New("also down")}

	c := NewChain(time.Second, nil, first, second)
	results, err := c.Search(context.Background(), "query")

	assert.Nil(t, results)
	assert.ErrorIs(t, err, agent.ErrSearchUnavailable)
}

func TestChainNoProviders(t *testing.T) {
	c := NewChain(time.Second, nil)
	_, err := c.Search(context.Background(), "query")
	assert.ErrorIs(t, err, agent.ErrSearchUnavailable)
}

func TestChainAllEmptyIsNotAnError(t *testing.T) {
	c := NewChain(time.Second, nil, &stubProvider{name: "a"}, &stubProvider{name: "b"})
	results, err := c.Search(context.Background(), "query")
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestChainHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &stubProvider{name: "a"}
	c := NewChain(time.Second, nil, provider)
	_, err := c.Search(ctx, "query")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, provider.calls)
}

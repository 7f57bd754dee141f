// Package websearch implements the web search backends used to supplement
// the clinic knowledge base, all behind a single Provider interface so
// backends stay interchangeable and configurable.
package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hautlabor/clinic-assist/pkg/agent"
)

// Provider executes a query against one search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]agent.SearchResult, error)
}

// Chain tries an ordered list of providers with an independent timeout each
// and returns the first non-empty result set. It implements agent.Searcher.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	logger    *slog.Logger
}

// NewChain builds a provider chain. Timeout applies per provider, not to the
// chain as a whole.
func NewChain(timeout time.Duration, logger *slog.Logger, providers ...Provider) *Chain {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{providers: providers, timeout: timeout, logger: logger}
}

// Search runs the chain. When every provider fails or returns nothing, the
// error wraps agent.ErrSearchUnavailable so the orchestrator can absorb it
// as empty evidence.
func (c *Chain) Search(ctx context.Context, query string) ([]agent.SearchResult, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", agent.ErrSearchUnavailable)
	}

	var lastErr error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		results, err := p.Search(pctx, query)
		cancel()

		if err != nil {
			c.logger.Warn("search provider failed, trying next", "provider", p.Name(), "error", err)
			lastErr = err
			continue
		}
		if len(results) == 0 {
			c.logger.Info("search provider returned no results, trying next", "provider", p.Name())
			continue
		}
		return results, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", agent.ErrSearchUnavailable, lastErr)
	}
	return nil, nil
}

package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hautlabor/clinic-assist/pkg/agent"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API, the primary backend.
type Tavily struct {
	apiKey     string
	maxResults int
	client     *http.Client
}

// NewTavily constructs a Tavily provider.
func NewTavily(apiKey string, maxResults int) *Tavily {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Tavily{
		apiKey:     apiKey,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// NewTavilyWithClient constructs a Tavily provider with a custom HTTP
// client, mainly for tests.
func NewTavilyWithClient(apiKey string, maxResults int, client *http.Client) *Tavily {
	t := NewTavily(apiKey, maxResults)
	t.client = client
	return t
}

func (t *Tavily) Name() string { return "tavily" }

// Search posts the query to Tavily and maps the response to SearchResults.
func (t *Tavily) Search(ctx context.Context, query string) ([]agent.SearchResult, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	payload, err := json.Marshal(map[string]any{
		"api_key":      t.apiKey,
		"query":        query,
		"search_depth": "basic",
		"max_results":  t.maxResults,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var body struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	results := make([]agent.SearchResult, 0, len(body.Results))
	for _, r := range body.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, agent.SearchResult{
			Title:    r.Title,
			URL:      r.URL,
			Snippet:  r.Content,
			Provider: t.Name(),
		})
		if len(results) >= t.maxResults {
			break
		}
	}
	return results, nil
}

package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hautlabor/clinic-assist/pkg/agent"
)

const duckDuckGoEndpoint = "https://api.duckduckgo.com/"

// DuckDuckGo uses the keyless DuckDuckGo instant-answer API as a fallback
// backend when the primary provider is unavailable.
type DuckDuckGo struct {
	maxResults int
	client     *http.Client
}

// NewDuckDuckGo constructs a DuckDuckGo provider.
func NewDuckDuckGo(maxResults int) *DuckDuckGo {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &DuckDuckGo{
		maxResults: maxResults,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// NewDuckDuckGoWithClient constructs a provider with a custom HTTP client.
func NewDuckDuckGoWithClient(maxResults int, client *http.Client) *DuckDuckGo {
	d := NewDuckDuckGo(maxResults)
	d.client = client
	return d
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search queries the instant-answer API. Abstracts, definitions, and related
// topics map to results; items without a provider URL are dropped because
// downstream components may only cite provider-returned URLs.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]agent.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, duckDuckGoEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	var body struct {
		Heading       string `json:"Heading"`
		Abstract      string `json:"Abstract"`
		AbstractURL   string `json:"AbstractURL"`
		Definition    string `json:"Definition"`
		DefinitionURL string `json:"DefinitionURL"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	var results []agent.SearchResult
	if body.Abstract != "" && body.AbstractURL != "" {
		results = append(results, agent.SearchResult{
			Title:    body.Heading,
			URL:      body.AbstractURL,
			Snippet:  body.Abstract,
			Provider: d.Name(),
		})
	}
	if body.Definition != "" && body.DefinitionURL != "" {
		results = append(results, agent.SearchResult{
			Title:    "Definition: " + query,
			URL:      body.DefinitionURL,
			Snippet:  body.Definition,
			Provider: d.Name(),
		})
	}
	for _, topic := range body.RelatedTopics {
		if len(results) >= d.maxResults {
			break
		}
		if topic.Text == "" || topic.FirstURL == "" {
			continue
		}
		results = append(results, agent.SearchResult{
			Title:    "Related information",
			URL:      topic.FirstURL,
			Snippet:  topic.Text,
			Provider: d.Name(),
		})
	}
	return results, nil
}

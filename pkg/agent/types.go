package agent

// RetrievedPassage is a ranked chunk returned by the knowledge retriever.
// SourceID always refers to a real indexed page; downstream components treat
// passages as read-only.
type RetrievedPassage struct {
	Text      string  `json:"text"`
	SourceID  string  `json:"source_id"`
	Title     string  `json:"title,omitempty"`
	Relevance float64 `json:"relevance"`
}

// SearchResult is a single item returned by a web search provider. URL is
// always a provider-returned value, never constructed downstream.
type SearchResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Provider string `json:"provider"`
}

// EvidenceBundle collects everything retrieved or searched for one answer
// cycle. It is created at cycle start and discarded at cycle end.
type EvidenceBundle struct {
	Passages []RetrievedPassage `json:"passages"`
	Results  []SearchResult     `json:"results"`
}

// IsEmpty reports whether the bundle holds no evidence at all.
func (b EvidenceBundle) IsEmpty() bool {
	return len(b.Passages) == 0 && len(b.Results) == 0
}

// Identifiers returns every citable identifier in the bundle: passage source
// IDs and search result URLs.
func (b EvidenceBundle) Identifiers() []string {
	ids := make([]string, 0, len(b.Passages)+len(b.Results))
	seen := make(map[string]bool)
	for _, p := range b.Passages {
		if p.SourceID != "" && !seen[p.SourceID] {
			seen[p.SourceID] = true
			ids = append(ids, p.SourceID)
		}
	}
	for _, r := range b.Results {
		if r.URL != "" && !seen[r.URL] {
			seen[r.URL] = true
			ids = append(ids, r.URL)
		}
	}
	return ids
}

// HasIdentifier reports whether id is citable from this bundle. Search result
// titles are accepted as well so named-source references can be validated.
func (b EvidenceBundle) HasIdentifier(id string) bool {
	for _, p := range b.Passages {
		if p.SourceID == id || (p.Title != "" && p.Title == id) {
			return true
		}
	}
	for _, r := range b.Results {
		if r.URL == id || (r.Title != "" && r.Title == id) {
			return true
		}
	}
	return false
}

// HasURL reports whether url was returned by a search provider in this cycle.
func (b EvidenceBundle) HasURL(url string) bool {
	for _, r := range b.Results {
		if r.URL == url {
			return true
		}
	}
	return false
}

// Answer is the final output of an answer cycle. CitedSources only ever
// contains identifiers present in the cycle's EvidenceBundle.
type Answer struct {
	Body         string   `json:"body"`
	Disclaimers  []string `json:"disclaimers"`
	CitedSources []string `json:"cited_sources"`
}

// HasDisclaimer reports whether the answer already carries the given
// disclaimer text.
func (a Answer) HasDisclaimer(text string) bool {
	for _, d := range a.Disclaimers {
		if d == text {
			return true
		}
	}
	return false
}

// Decision is the classifier's verdict for one query.
type Decision struct {
	NeedsSearch bool   `json:"needs_search"`
	SearchQuery string `json:"search_query,omitempty"`
}

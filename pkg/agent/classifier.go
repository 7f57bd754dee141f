package agent

import "strings"

// QueryCategory groups trigger keywords that share a search-query suffix.
type QueryCategory string

const (
	CategoryNone     QueryCategory = ""
	CategoryResearch QueryCategory = "research"
	CategoryPricing  QueryCategory = "pricing"
	CategoryRecency  QueryCategory = "recency"
)

// ClassifierConfig carries the tunable decision table. Zero values fall back
// to the defaults below, so tests and callers can override selectively.
type ClassifierConfig struct {
	// MinTotalRelevance is the minimum summed relevance across retrieved
	// passages below which web search is triggered.
	MinTotalRelevance float64

	// Keyword lists per category, matched case-insensitively as substrings
	// of the query. Evaluated research, then pricing, then recency.
	ResearchKeywords []string
	PricingKeywords  []string
	RecencyKeywords  []string

	// Suffixes appended to the original query per category to bias the
	// search provider toward relevant, dated results.
	ResearchSuffix string
	PricingSuffix  string
	RecencySuffix  string
	DefaultSuffix  string
}

// Default decision-table values. The keyword lists mirror the coordination
// triggers the clinic assistant has used in production; they are tunable
// configuration, not derived constants.
var (
	defaultResearchKeywords = []string{
		"study", "studies", "research", "clinical trial", "clinical trials",
		"evidence", "scientific", "pubmed", "journal", "publication", "findings",
	}
	defaultPricingKeywords = []string{
		"price", "prices", "pricing", "cost", "costs", "availability",
	}
	defaultRecencyKeywords = []string{
		"latest", "recent", "current", "newest", "updated", "trending",
		"this year", "today", "2024", "2025", "2026",
	}
)

const (
	defaultMinTotalRelevance = 1.5

	defaultResearchSuffix = "clinical studies peer-reviewed research"
	defaultPricingSuffix  = "Germany aesthetic clinic current market pricing"
	defaultRecencySuffix  = "latest developments aesthetic medicine"
	defaultDefaultSuffix  = "aesthetic medicine"
)

// Classifier decides whether a query needs supplementary web search and, if
// so, builds the optimized search query. It is a pure function of its inputs:
// identical (query, passages) always yields the identical Decision.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier builds a classifier, filling unset config fields with the
// defaults above.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.MinTotalRelevance == 0 {
		cfg.MinTotalRelevance = defaultMinTotalRelevance
	}
	if cfg.ResearchKeywords == nil {
		cfg.ResearchKeywords = defaultResearchKeywords
	}
	if cfg.PricingKeywords == nil {
		cfg.PricingKeywords = defaultPricingKeywords
	}
	if cfg.RecencyKeywords == nil {
		cfg.RecencyKeywords = defaultRecencyKeywords
	}
	if cfg.ResearchSuffix == "" {
		cfg.ResearchSuffix = defaultResearchSuffix
	}
	if cfg.PricingSuffix == "" {
		cfg.PricingSuffix = defaultPricingSuffix
	}
	if cfg.RecencySuffix == "" {
		cfg.RecencySuffix = defaultRecencySuffix
	}
	if cfg.DefaultSuffix == "" {
		cfg.DefaultSuffix = defaultDefaultSuffix
	}
	return &Classifier{cfg: cfg}
}

// Classify applies the decision policy in order, first match wins:
//
//  1. Query contains a time-sensitive or evidentiary keyword → search, with
//     the category suffix.
//  2. Knowledge-base response empty or total relevance below threshold →
//     search, with the default suffix.
//  3. Otherwise → knowledge base alone.
func (c *Classifier) Classify(query string, passages []RetrievedPassage) Decision {
	if cat := c.Categorize(query); cat != CategoryNone {
		return Decision{NeedsSearch: true, SearchQuery: c.buildSearchQuery(query, cat)}
	}

	total := 0.0
	for _, p := range passages {
		total += p.Relevance
	}
	if len(passages) == 0 || total < c.cfg.MinTotalRelevance {
		return Decision{NeedsSearch: true, SearchQuery: c.buildSearchQuery(query, CategoryNone)}
	}

	return Decision{NeedsSearch: false}
}

// Categorize returns the first keyword category matching the query, with
// research taking precedence over pricing and pricing over recency.
func (c *Classifier) Categorize(query string) QueryCategory {
	q := strings.ToLower(query)
	if containsAny(q, c.cfg.ResearchKeywords) {
		return CategoryResearch
	}
	if containsAny(q, c.cfg.PricingKeywords) {
		return CategoryPricing
	}
	if containsAny(q, c.cfg.RecencyKeywords) {
		return CategoryRecency
	}
	return CategoryNone
}

func (c *Classifier) buildSearchQuery(query string, cat QueryCategory) string {
	suffix := c.cfg.DefaultSuffix
	switch cat {
	case CategoryResearch:
		suffix = c.cfg.ResearchSuffix
	case CategoryPricing:
		suffix = c.cfg.PricingSuffix
	case CategoryRecency:
		suffix = c.cfg.RecencySuffix
	}
	return strings.TrimSpace(query) + " " + suffix
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Model is the language-model interface the synthesizer depends on.
// Implementations must honor ctx cancellation.
type Model interface {
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// FallbackBody is the literal body returned whenever synthesis fails. It is
// identical regardless of the query so failures stay predictable.
const FallbackBody = "I'm sorry, I could not produce a reliable answer to your question right now. Please contact the clinic directly for assistance."

// NoEvidenceBody is returned when the cycle collected no evidence at all.
const NoEvidenceBody = "I could not find verified information to answer this question. Please contact the clinic directly."

// SynthesizerConfig tunes the model call.
type SynthesizerConfig struct {
	ClinicName    string
	ClinicContact string
	Temperature   float64
	MaxTokens     int
}

// Synthesizer turns one query plus its EvidenceBundle into a grounded
// Answer. It never introduces facts that are not present in the bundle: the
// prompt lists only bundle items, the parsed citations are filtered against
// the bundle, and every failure path ends in a fixed safe Answer.
type Synthesizer struct {
	model Model
	cfg   SynthesizerConfig
}

// NewSynthesizer builds a synthesizer around the given model.
func NewSynthesizer(model Model, cfg SynthesizerConfig) *Synthesizer {
	if cfg.ClinicName == "" {
		cfg.ClinicName = "the clinic"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	return &Synthesizer{model: model, cfg: cfg}
}

// Synthesize produces an Answer for the query. The returned Answer is always
// usable; a non-nil error reports why a degraded answer was produced
// (wrapping ErrModelUnavailable or ErrMalformedResponse) so the caller can
// log it, not so it can be surfaced to the user.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, bundle EvidenceBundle) (Answer, error) {
	if bundle.IsEmpty() {
		// Medically sensitive domain: never ask the model to answer from
		// general knowledge when nothing was retrieved or searched.
		return s.noEvidenceAnswer(), nil
	}

	prompt := buildSynthesisPrompt(query, bundle, s.cfg.ClinicName)

	raw, err := s.model.Complete(ctx, prompt, s.cfg.Temperature, s.cfg.MaxTokens)
	if err != nil {
		return s.fallbackAnswer(), fmt.Errorf("synthesis: %w: %v", ErrModelUnavailable, err)
	}

	parsed, err := parseSynthesis(raw)
	if err != nil {
		return s.fallbackAnswer(), fmt.Errorf("synthesis: %w", err)
	}

	// Citations are restricted to identifiers actually in the bundle; the
	// model cannot mint new sources.
	cited := make([]string, 0, len(parsed.CitedSources))
	for _, id := range parsed.CitedSources {
		if bundle.HasIdentifier(id) {
			cited = append(cited, id)
		}
	}

	return Answer{
		Body:         parsed.Body,
		CitedSources: cited,
	}, nil
}

func (s *Synthesizer) noEvidenceAnswer() Answer {
	body := NoEvidenceBody
	if s.cfg.ClinicContact != "" {
		body = strings.TrimSuffix(NoEvidenceBody, ".") + " at " + s.cfg.ClinicContact + "."
	}
	return Answer{
		Body:         body,
		Disclaimers:  []string{DisclaimerReferral},
		CitedSources: []string{},
	}
}

func (s *Synthesizer) fallbackAnswer() Answer {
	return Answer{
		Body:         FallbackBody,
		Disclaimers:  []string{DisclaimerReferral},
		CitedSources: []string{},
	}
}

type synthesisPayload struct {
	Body         string   `json:"answer"`
	CitedSources []string `json:"cited_sources"`
}

// parseSynthesis extracts the JSON object from the raw model output. Models
// occasionally wrap JSON in code fences or prose, so everything outside the
// outermost braces is discarded before unmarshaling.
func parseSynthesis(raw string) (synthesisPayload, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return synthesisPayload{}, fmt.Errorf("%w: no JSON object in output", ErrMalformedResponse)
	}

	var payload synthesisPayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return synthesisPayload{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(payload.Body) == "" {
		return synthesisPayload{}, fmt.Errorf("%w: empty answer body", ErrMalformedResponse)
	}
	return payload, nil
}

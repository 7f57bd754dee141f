package agent

import (
	"fmt"
	"strings"
)

// buildSynthesisPrompt lists only the evidence actually present in the
// bundle, each item tagged with its citable identifier, and instructs the
// model to ground every claim in those identifiers or flag it as a
// limitation. The model must reply with a single JSON object so the response
// is machine-checkable.
func buildSynthesisPrompt(query string, bundle EvidenceBundle, clinicName string) string {
	var sb strings.Builder

	sb.WriteString("You are an assistant answering questions about ")
	sb.WriteString(clinicName)
	sb.WriteString(", a medical aesthetics clinic.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(strings.TrimSpace(query))
	sb.WriteString("\n\nEvidence:\n")

	for _, p := range bundle.Passages {
		sb.WriteString(fmt.Sprintf("\n[%s] (clinic knowledge base", p.SourceID))
		if p.Title != "" {
			sb.WriteString(", " + p.Title)
		}
		sb.WriteString(")\n")
		sb.WriteString(strings.TrimSpace(p.Text))
		sb.WriteString("\n")
	}
	for _, r := range bundle.Results {
		sb.WriteString(fmt.Sprintf("\n[%s] (web search via %s", r.URL, r.Provider))
		if r.Title != "" {
			sb.WriteString(", " + r.Title)
		}
		sb.WriteString(")\n")
		sb.WriteString(strings.TrimSpace(r.Snippet))
		sb.WriteString("\n")
	}

	sb.WriteString(`
Rules:
- Use ONLY the evidence above. Do not invent studies, prices, statistics, URLs, or named sources.
- Every claim that comes from an evidence item must cite it inline as [identifier], using the bracketed identifiers exactly as given.
- If the evidence does not support part of the question, say so as a limitation instead of asserting an answer.
- Do not give medical advice; describe information only.

Respond with a single JSON object and nothing else:
{"answer": "<answer text with [identifier] citations>", "cited_sources": ["<identifier>", ...]}
`)

	return sb.String()
}

package agent

import (
	"regexp"
	"strings"
)

// Required disclaimers appended to every answer that does not already carry
// them.
const (
	DisclaimerReferral = "This information does not replace professional medical advice. Please consult a qualified medical professional before making treatment decisions."

	DisclaimerSourceVerification = "Answers are based only on the clinic's indexed content and cited web sources; unverified claims are removed."
)

// NoVerifiedSource is the neutral phrase substituted for claims the gate
// cannot trace to the evidence bundle.
const NoVerifiedSource = "no verified source available"

var (
	urlRe = regexp.MustCompile(`https?://[^\s<>()\[\]"']+`)

	citationRe = regexp.MustCompile(`\[([^\[\]]+)\]`)

	// Numbers read as statistics: currency amounts, percentages, and counts
	// of patients/participants/studies. Bare numbers (years, list indexes)
	// are deliberately not matched.
	statRe = regexp.MustCompile(`(?i)(?:€|\$)\s*\d[\d.,]*|\b\d[\d.,]*\s*(?:%|(?:percent|euros?|eur|usd|dollars?|patients?|participants?|subjects?|studies|trials?)\b)`)
)

// statReplacement is a full sentence so a neutralized claim still reads as
// part of the answer. It contains no digits, keeping the gate idempotent.
const statReplacement = "No verified source is available for a specific figure here."

// Gate is the mandatory final stage of every answer cycle. It rewrites the
// Answer so that no URL, named source, or numeric statistic survives without
// a matching item in the EvidenceBundle, and appends the required disclaimer
// set. It is deterministic, makes no external calls, and applying it twice
// yields the same output.
type Gate struct{}

// NewGate returns the safety gate.
func NewGate() *Gate {
	return &Gate{}
}

// Apply validates and rewrites the answer against the bundle.
func (g *Gate) Apply(ans Answer, bundle EvidenceBundle) Answer {
	body := g.rewriteURLs(ans.Body, bundle)
	body, bodyCitations := g.rewriteCitations(body, bundle)
	body = g.rewriteStatistics(body)

	// cited_sources must be a subset of the bundle and must cover every
	// citation left in the body.
	cited := make([]string, 0, len(ans.CitedSources))
	seen := make(map[string]bool)
	for _, id := range ans.CitedSources {
		if bundle.HasIdentifier(id) && !seen[id] {
			seen[id] = true
			cited = append(cited, id)
		}
	}
	for _, id := range bodyCitations {
		if !seen[id] {
			seen[id] = true
			cited = append(cited, id)
		}
	}

	disclaimers := append([]string(nil), ans.Disclaimers...)
	for _, required := range []string{DisclaimerReferral, DisclaimerSourceVerification} {
		if !ans.HasDisclaimer(required) {
			disclaimers = append(disclaimers, required)
		}
	}

	return Answer{
		Body:         body,
		Disclaimers:  disclaimers,
		CitedSources: cited,
	}
}

// rewriteURLs replaces every URL token that was not returned by a search
// provider this cycle with the neutral phrase.
func (g *Gate) rewriteURLs(body string, bundle EvidenceBundle) string {
	return urlRe.ReplaceAllStringFunc(body, func(match string) string {
		trimmed := strings.TrimRight(match, ".,;:!?")
		suffix := match[len(trimmed):]
		if bundle.HasURL(trimmed) {
			return match
		}
		return "[" + NoVerifiedSource + "]" + suffix
	})
}

// rewriteCitations strips bracketed source references that do not resolve to
// a bundle identifier or title. It returns the surviving citation
// identifiers so the caller can reconcile cited_sources. Markdown link
// labels (immediately followed by a parenthesis) and the neutral phrase pass
// through untouched.
func (g *Gate) rewriteCitations(body string, bundle EvidenceBundle) (string, []string) {
	var kept []string
	seen := make(map[string]bool)

	out := replaceAllStringSubmatchFunc(citationRe, body, func(match, token string, end int) string {
		if token == NoVerifiedSource {
			return match
		}
		if end < len(body) && body[end] == '(' {
			return match // markdown link label
		}
		if bundle.HasIdentifier(token) {
			if id := resolveIdentifier(token, bundle); id != "" && !seen[id] {
				seen[id] = true
				kept = append(kept, id)
			}
			return match
		}
		return "[" + NoVerifiedSource + "]"
	})

	return out, kept
}

// rewriteStatistics neutralizes any sentence carrying a numeric statistic
// without a citation in that same sentence. Citation adjacency is judged per
// sentence so a figure and its source stay together.
func (g *Gate) rewriteStatistics(body string) string {
	var out strings.Builder
	for i, line := range strings.Split(body, "\n") {
		if i > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(rewriteStatLine(line))
	}
	return out.String()
}

func rewriteStatLine(line string) string {
	sentences := splitSentences(line)
	changed := false
	for i, s := range sentences {
		if !statRe.MatchString(s) {
			continue
		}
		if hasRealCitation(s) {
			continue
		}
		lead := s[:len(s)-len(strings.TrimLeft(s, " \t"))]
		sentences[i] = lead + statReplacement
		changed = true
	}
	if !changed {
		return line
	}
	return strings.Join(sentences, " ")
}

// hasRealCitation reports whether the sentence carries a bracketed citation
// other than the neutral no-source phrase. By the time statistics are
// checked, any surviving non-neutral bracket token resolves to the bundle.
func hasRealCitation(sentence string) bool {
	for _, m := range citationRe.FindAllStringSubmatch(sentence, -1) {
		if m[1] != NoVerifiedSource {
			return true
		}
	}
	return false
}

// Title and phrase abbreviations whose trailing period does not end a
// sentence. Matched against the full preceding word, so ordinary words that
// merely end in these letters are unaffected.
var abbreviations = map[string]bool{
	"dr": true, "prof": true, "mr": true, "mrs": true, "ms": true,
	"vs": true, "ca": true, "approx": true, "etc": true,
	"e.g": true, "i.e": true, "z.b": true, "bzw": true,
}

// splitSentences breaks a line on terminal punctuation, keeping the
// punctuation with its sentence. Periods inside decimals and after
// abbreviations are not terminators, so a figure and its citation are not
// torn apart by "Dr." or "85.5".
func splitSentences(line string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if c == '.' && !terminatesSentence(line, i) {
			continue
		}
		sentences = append(sentences, strings.TrimRight(line[start:i+1], " "))
		start = i + 1
		for start < len(line) && line[start] == ' ' {
			start++
		}
		i = start - 1
	}
	if start < len(line) && strings.TrimSpace(line[start:]) != "" {
		sentences = append(sentences, line[start:])
	}
	return sentences
}

// terminatesSentence reports whether the period at index i ends a sentence.
// A period mid-token (decimals, domains) or after a known abbreviation does
// not.
func terminatesSentence(line string, i int) bool {
	if i+1 < len(line) && line[i+1] != ' ' {
		return false
	}
	start := i
	for start > 0 && (isWordByte(line[start-1]) || line[start-1] == '.') {
		start--
	}
	return !abbreviations[strings.ToLower(line[start:i])]
}

func isWordByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// resolveIdentifier maps a citation token (which may be a title) back to the
// canonical bundle identifier.
func resolveIdentifier(token string, bundle EvidenceBundle) string {
	for _, p := range bundle.Passages {
		if p.SourceID == token || (p.Title != "" && p.Title == token) {
			return p.SourceID
		}
	}
	for _, r := range bundle.Results {
		if r.URL == token || (r.Title != "" && r.Title == token) {
			return r.URL
		}
	}
	return ""
}

// replaceAllStringSubmatchFunc runs repl over every citation match, passing
// the full match, the inner token, and the match end offset in src.
func replaceAllStringSubmatchFunc(re *regexp.Regexp, src string, repl func(match, token string, end int) string) string {
	var out strings.Builder
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(src, -1) {
		out.WriteString(src[last:loc[0]])
		out.WriteString(repl(src[loc[0]:loc[1]], src[loc[2]:loc[3]], loc[1]))
		last = loc[1]
	}
	out.WriteString(src[last:])
	return out.String()
}

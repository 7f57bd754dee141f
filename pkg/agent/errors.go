package agent

import "errors"

var (
	// ErrRetrievalUnavailable indicates the knowledge base could not be
	// reached. Absorbed as empty evidence, never surfaced to the user.
	ErrRetrievalUnavailable = errors.New("knowledge retrieval unavailable")

	// ErrSearchUnavailable indicates every configured search provider
	// failed. Absorbed as empty evidence, never surfaced to the user.
	ErrSearchUnavailable = errors.New("web search unavailable")

	// ErrModelUnavailable indicates the language model could not be
	// reached during synthesis.
	ErrModelUnavailable = errors.New("language model unavailable")

	// ErrMalformedResponse indicates the language model returned output
	// that could not be parsed into an Answer.
	ErrMalformedResponse = errors.New("malformed model response")
)

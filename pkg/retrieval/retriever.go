// Package retrieval implements the knowledge-base side of an answer cycle:
// embed the query, search the pgvector store, and map hits to passages the
// answer pipeline can cite.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hautlabor/clinic-assist/pkg/agent"
	"github.com/hautlabor/clinic-assist/pkg/vectorstore"
)

// Embedder generates the query embedding.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Store performs the similarity search over indexed page chunks.
type Store interface {
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int) ([]vectorstore.SimilarityMatch, error)
}

// Service implements agent.Retriever over the clinic knowledge base.
// Passage source IDs are the indexed page URLs, so every citation resolves
// to a real document.
type Service struct {
	embedder Embedder
	store    Store
	logger   *slog.Logger
}

// NewService builds a retriever.
func NewService(embedder Embedder, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embedder: embedder, store: store, logger: logger}
}

// Retrieve returns the topK most relevant passages for the query. Any
// embedding or store failure wraps agent.ErrRetrievalUnavailable so the
// orchestrator degrades to an empty passage list.
func (s *Service) Retrieve(ctx context.Context, query string, topK int) ([]agent.RetrievedPassage, error) {
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", agent.ErrRetrievalUnavailable, err)
	}

	matches, err := s.store.SimilaritySearch(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %v", agent.ErrRetrievalUnavailable, err)
	}

	passages := make([]agent.RetrievedPassage, 0, len(matches))
	for _, m := range matches {
		if m.Chunk.Source == "" {
			// A chunk without a source cannot be cited; skip it rather
			// than let an unattributable passage into the bundle.
			s.logger.Warn("dropping chunk without source", "chunk_id", m.Chunk.ID)
			continue
		}
		passages = append(passages, agent.RetrievedPassage{
			Text:      m.Chunk.Content,
			SourceID:  m.Chunk.Source,
			Title:     m.Chunk.Title,
			Relevance: m.Score,
		})
	}

	s.logger.Debug("retrieved passages", "query", query, "count", len(passages))
	return passages, nil
}

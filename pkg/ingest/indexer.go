// Package ingest loads pre-crawled clinic pages into the vector store. It is
// the loader side of the knowledge-base boundary; crawling itself happens
// elsewhere.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/hautlabor/clinic-assist/pkg/vectorstore"
)

// Embedder generates document embeddings for chunks.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists embedded chunks.
type Store interface {
	AddChunks(ctx context.Context, chunks []vectorstore.PageChunk) error
}

// Page is one crawled clinic page ready for indexing. Source is the page
// URL and becomes the citation source ID of every chunk.
type Page struct {
	Source  string
	Title   string
	Content string
}

// Indexer splits, embeds, and stores pages.
type Indexer struct {
	embedder Embedder
	store    Store
	splitter textsplitter.TextSplitter
	logger   *slog.Logger
}

// NewIndexer builds an indexer with a recursive character splitter.
func NewIndexer(embedder Embedder, store Store, chunkSize, chunkOverlap int, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder: embedder,
		store:    store,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		logger: logger,
	}
}

// IndexPage splits one page into chunks, embeds them, and stores them.
// Returns the number of chunks written.
func (ix *Indexer) IndexPage(ctx context.Context, page Page) (int, error) {
	if page.Source == "" {
		return 0, fmt.Errorf("page has no source URL")
	}
	if strings.TrimSpace(page.Content) == "" {
		ix.logger.Warn("skipping empty page", "source", page.Source)
		return 0, nil
	}

	texts, err := ix.splitter.SplitText(page.Content)
	if err != nil {
		return 0, fmt.Errorf("failed to split page %s: %w", page.Source, err)
	}

	embeddings, err := ix.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed page %s: %w", page.Source, err)
	}

	chunks := make([]vectorstore.PageChunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, vectorstore.PageChunk{
			Source:    page.Source,
			Title:     page.Title,
			ChunkNum:  i,
			Content:   text,
			Embedding: embeddings[i],
		})
	}

	if err := ix.store.AddChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks for %s: %w", page.Source, err)
	}

	ix.logger.Info("indexed page", "source", page.Source, "chunks", len(chunks))
	return len(chunks), nil
}

// IndexPages indexes a batch of pages sequentially, continuing past
// per-page failures. Returns total chunks written and the pages that failed.
func (ix *Indexer) IndexPages(ctx context.Context, pages []Page) (int, []string, error) {
	total := 0
	var failed []string
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return total, failed, err
		}
		n, err := ix.IndexPage(ctx, page)
		if err != nil {
			ix.logger.Error("failed to index page", "source", page.Source, "error", err)
			failed = append(failed, page.Source)
			continue
		}
		total += n
	}
	return total, failed, nil
}

package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hautlabor/clinic-assist/pkg/vectorstore"
)

type stubEmbedder struct {
	err error
}

func (e *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type stubStore struct {
	chunks []vectorstore.PageChunk
	err    error
}

func (s *stubStore) AddChunks(ctx context.Context, chunks []vectorstore.PageChunk) error {
	if s.err != nil {
		return s.err
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func TestIndexPageSplitsAndStores(t *testing.T) {
	store := &stubStore{}
	ix := NewIndexer(&stubEmbedder{}, store, 100, 20, nil)

	content := strings.Repeat("Microneedling stimulates collagen production. ", 20)
	n, err := ix.IndexPage(context.Background(), Page{
		Source:  "https://haut-labor.de/microneedling",
		Title:   "Microneedling",
		Content: content,
	})
	require.NoError(t, err)

	assert.Greater(t, n, 1, "long page should split into multiple chunks")
	require.Len(t, store.chunks, n)
	for i, chunk := range store.chunks {
		assert.Equal(t, "https://haut-labor.de/microneedling", chunk.Source)
		assert.Equal(t, "Microneedling", chunk.Title)
		assert.Equal(t, i, chunk.ChunkNum)
		assert.NotEmpty(t, chunk.Content)
		assert.NotNil(t, chunk.Embedding)
	}
}

func TestIndexPageRequiresSource(t *testing.T) {
	ix := NewIndexer(&stubEmbedder{}, &stubStore{}, 100, 20, nil)

	_, err := ix.IndexPage(context.Background(), Page{Content: "text"})
	assert.Error(t, err)
}

func TestIndexPageSkipsEmptyContent(t *testing.T) {
	store := &stubStore{}
	ix := NewIndexer(&stubEmbedder{}, store, 100, 20, nil)

	n, err := ix.IndexPage(context.Background(), Page{Source: "https://haut-labor.de/x", Content: "  \n "})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.chunks)
}

func TestIndexPagesContinuesPastFailures(t *testing.T) {
	store := &stubStore{}
	ix := NewIndexer(&stubEmbedder{}, store, 100, 20, nil)

	pages := []Page{
		{Source: "", Content: "no source, fails"},
		{Source: "https://haut-labor.de/ok", Title: "OK", Content: "Short page content."},
	}

	total, failed, err := ix.IndexPages(context.Background(), pages)
	require.NoError(t, err)

	assert.Equal(t, 1, total)
	assert.Equal(t, []string{""}, failed)
}

func TestIndexPagesEmbedderFailure(t *testing.T) {
	ix := NewIndexer(&stubEmbedder{err: errors.New("quota")}, &stubStore{}, 100, 20, nil)

	total, failed, err := ix.IndexPages(context.Background(), []Page{
		{Source: "https://haut-labor.de/a", Content: "content"},
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Len(t, failed, 1)
}

func TestIndexPagesHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ix := NewIndexer(&stubEmbedder{}, &stubStore{}, 100, 20, nil)
	_, _, err := ix.IndexPages(ctx, []Page{{Source: "https://haut-labor.de/a", Content: "content"}})
	assert.ErrorIs(t, err, context.Canceled)
}

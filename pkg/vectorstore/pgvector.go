package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PageChunk is one indexed chunk of a clinic page. Source is the page URL
// the chunk was crawled from and doubles as the chunk's citation source ID.
type PageChunk struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	ChunkNum  int       `json:"chunk_num"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// PGVectorStore stores and searches clinic page chunks in a pgvector table.
type PGVectorStore struct {
	pool      *pgxpool.Pool
	tableName string
}

// isValidTableName validates that a table name contains only safe characters
// to prevent SQL injection attacks
func isValidTableName(name string) bool {
	// Only allow alphanumeric characters and underscores
	// Table names must start with a letter or underscore and be between 1-63 chars (PostgreSQL limit)
	matched, _ := regexp.MatchString(`^[a-z_][a-zA-Z0-9_]{0,62}$`, name)
	return matched
}

// NewPGVectorStore creates a store over the given table.
func NewPGVectorStore(pool *pgxpool.Pool, tableName string) (*PGVectorStore, error) {
	if !isValidTableName(tableName) {
		return nil, fmt.Errorf("invalid table name: must contain only alphanumeric characters and underscores, start with a letter or underscore, and be 1-63 characters long")
	}
	return &PGVectorStore{
		pool:      pool,
		tableName: tableName,
	}, nil
}

// AddChunks batch-inserts page chunks with their embeddings.
func (vs *PGVectorStore) AddChunks(ctx context.Context, chunks []PageChunk) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (content, metadata, embedding)
		VALUES ($1, $2, $3)
	`, pgx.Identifier{vs.tableName}.Sanitize())

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(map[string]any{
			"source":    chunk.Source,
			"title":     chunk.Title,
			"chunk_num": chunk.ChunkNum,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		embedding := pgvector.NewVector(chunk.Embedding)
		batch.Queue(query, chunk.Content, metadataJSON, embedding)
	}

	br := vs.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	return nil
}

// SimilarityMatch is a search hit with its cosine similarity score.
type SimilarityMatch struct {
	Chunk PageChunk
	Score float64
}

// SimilaritySearch returns the topK chunks nearest to the query embedding,
// scored by cosine similarity.
func (vs *PGVectorStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int) ([]SimilarityMatch, error) {
	query := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) as similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgx.Identifier{vs.tableName}.Sanitize())

	embedding := pgvector.NewVector(queryEmbedding)
	rows, err := vs.pool.Query(ctx, query, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var results []SimilarityMatch
	for rows.Next() {
		chunk, similarity, err := scanChunkRow(rows, true)
		if err != nil {
			return nil, err
		}
		results = append(results, SimilarityMatch{Chunk: chunk, Score: similarity})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// GetChunksBySource returns every chunk of one page in chunk order, so a
// full page can be reassembled.
func (vs *PGVectorStore) GetChunksBySource(ctx context.Context, source string) ([]PageChunk, error) {
	query := fmt.Sprintf(`
		SELECT id, content, metadata
		FROM %s
		WHERE metadata->>'source' = $1
		ORDER BY (metadata->>'chunk_num')::int ASC
	`, pgx.Identifier{vs.tableName}.Sanitize())

	rows, err := vs.pool.Query(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var chunks []PageChunk
	for rows.Next() {
		chunk, _, err := scanChunkRow(rows, false)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return chunks, nil
}

// ListSources returns the distinct page URLs present in the store.
func (vs *PGVectorStore) ListSources(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT metadata->>'source'
		FROM %s
		WHERE metadata->>'source' IS NOT NULL
		ORDER BY 1
	`, pgx.Identifier{vs.tableName}.Sanitize())

	rows, err := vs.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sources = append(sources, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sources, nil
}

type chunkMetadata struct {
	Source   string `json:"source"`
	Title    string `json:"title"`
	ChunkNum int    `json:"chunk_num"`
}

func scanChunkRow(rows pgx.Rows, withScore bool) (PageChunk, float64, error) {
	var chunk PageChunk
	var metadataJSON []byte
	var similarity float64

	var err error
	if withScore {
		err = rows.Scan(&chunk.ID, &chunk.Content, &metadataJSON, &similarity)
	} else {
		err = rows.Scan(&chunk.ID, &chunk.Content, &metadataJSON)
	}
	if err != nil {
		return PageChunk{}, 0, fmt.Errorf("failed to scan row: %w", err)
	}

	var meta chunkMetadata
	if err := json.Unmarshal(metadataJSON, &meta); err != nil {
		return PageChunk{}, 0, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	chunk.Source = meta.Source
	chunk.Title = meta.Title
	chunk.ChunkNum = meta.ChunkNum

	return chunk, similarity, nil
}

// Package database owns the shared Postgres pool and the schema the
// assistant stores its chunks, conversations, and audit records in.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing for a single-instance deployment: an answer cycle holds at
// most one connection at a time, plus short-lived audit writes.
const (
	poolMaxConns = 25
	poolMinConns = 5
)

// HNSW indexes support at most 2000 dimensions; wider embeddings fall back
// to exact search.
const hnswMaxDimensions = 2000

// PostgresDB wraps the pgx pool shared by the vector store, the conversation
// tables, and the answer-cycle audit log.
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresDB connects to the database and verifies the connection.
func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	cfg.MaxConns = poolMaxConns
	cfg.MinConns = poolMinConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *PostgresDB) Close() {
	db.Pool.Close()
}

// Bootstrap prepares everything the assistant needs in one pass: the
// pgvector extension, the page-chunk table for the given collection, and the
// conversation and audit schema. Safe to run on every start.
func (db *PostgresDB) Bootstrap(ctx context.Context, chunkTable string, dimension int) error {
	if _, err := db.Pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to ensure pgvector extension: %w", err)
	}
	if err := db.createChunkTable(ctx, chunkTable, dimension); err != nil {
		return err
	}
	return db.InitSchema(ctx)
}

// createChunkTable creates the embeddings table one collection of clinic
// page chunks lives in, with a cosine HNSW index when the dimension allows.
func (db *PostgresDB) createChunkTable(ctx context.Context, tableName string, dimension int) error {
	table := pgx.Identifier{tableName}.Sanitize()

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, table, dimension)
	if _, err := db.Pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	if dimension > hnswMaxDimensions {
		return nil
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s USING hnsw (embedding vector_cosine_ops)
	`, pgx.Identifier{tableName + "_embedding_idx"}.Sanitize(), table)
	if _, err := db.Pool.Exec(ctx, indexQuery); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", tableName, err)
	}

	return nil
}

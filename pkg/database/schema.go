package database

import (
	"context"
	"fmt"
)

// InitSchema creates the conversation and audit tables. The page-chunk
// embeddings table is created per collection by Bootstrap.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	// 1. Conversations Table
	convQuery := `
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL DEFAULT 'New Conversation',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, convQuery); err != nil {
		return fmt.Errorf("failed to create conversations table: %w", err)
	}

	// 2. Messages Table
	msgQuery := `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, msgQuery); err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}

	// 3. Answer Cycles Table (one audit row per answer cycle)
	cyclesQuery := `
		CREATE TABLE IF NOT EXISTS answer_cycles (
			id UUID PRIMARY KEY,
			query TEXT NOT NULL,
			state TEXT NOT NULL,
			needs_search BOOLEAN NOT NULL DEFAULT FALSE,
			search_query TEXT,
			passage_count INT NOT NULL DEFAULT 0,
			result_count INT NOT NULL DEFAULT 0,
			cited_sources JSONB,
			answer TEXT,
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			finished_at TIMESTAMP WITH TIME ZONE NOT NULL
		);
	`
	if _, err := db.Pool.Exec(ctx, cyclesQuery); err != nil {
		return fmt.Errorf("failed to create answer_cycles table: %w", err)
	}

	// 4. Answer Logs Table (structured log records per cycle)
	logsQuery := `
		CREATE TABLE IF NOT EXISTS answer_logs (
			id SERIAL PRIMARY KEY,
			cycle_id UUID NOT NULL,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		);
	`
	if _, err := db.Pool.Exec(ctx, logsQuery); err != nil {
		return fmt.Errorf("failed to create answer_logs table: %w", err)
	}

	// Indexes for faster querying
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id)"); err != nil {
		return fmt.Errorf("failed to create index on messages: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)"); err != nil {
		return fmt.Errorf("failed to create index on conversations: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_answer_cycles_started_at ON answer_cycles(started_at DESC)"); err != nil {
		return fmt.Errorf("failed to create index on answer_cycles: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_answer_logs_cycle_id ON answer_logs(cycle_id)"); err != nil {
		return fmt.Errorf("failed to create index on answer_logs: %w", err)
	}

	return nil
}

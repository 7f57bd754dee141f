package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hautlabor/clinic-assist/pkg/agent"
	"github.com/hautlabor/clinic-assist/pkg/database"
	"github.com/hautlabor/clinic-assist/pkg/vectorstore"
)

// KnowledgeBase is the read side of the indexed page store, used by the
// inspection endpoints.
type KnowledgeBase interface {
	ListSources(ctx context.Context) ([]string, error)
	GetChunksBySource(ctx context.Context, source string) ([]vectorstore.PageChunk, error)
}

// Service exposes the answer pipeline plus conversation persistence, the
// answer-cycle audit trail, and knowledge-base inspection.
type Service struct {
	DB           *database.PostgresDB
	Orchestrator *agent.Orchestrator
	KB           KnowledgeBase
}

func NewService(db *database.PostgresDB, orchestrator *agent.Orchestrator, kb KnowledgeBase) *Service {
	return &Service{DB: db, Orchestrator: orchestrator, KB: kb}
}

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// AskResponse is returned by the ask endpoints: the gated answer plus the
// audit cycle ID.
type AskResponse struct {
	CycleID uuid.UUID    `json:"cycle_id"`
	State   agent.State  `json:"state"`
	Answer  agent.Answer `json:"answer"`
}

func (s *Service) CreateConversation(ctx context.Context) (*Conversation, error) {
	id := uuid.New()
	query := `INSERT INTO conversations (id) VALUES ($1) RETURNING id, title, created_at, updated_at`

	conv := &Conversation{}
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context) ([]Conversation, error) {
	query := `SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, nil
}

func (s *Service) GetHistory(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	query := `SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`
	rows, err := s.DB.Pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Ask runs one answer cycle without conversation context.
func (s *Service) Ask(ctx context.Context, question string) (*AskResponse, error) {
	cycle, err := s.Orchestrator.Run(ctx, question)
	if err != nil {
		return nil, err
	}
	s.recordCycle(cycle)
	return &AskResponse{CycleID: cycle.ID, State: cycle.State, Answer: cycle.Answer}, nil
}

// AskInConversation runs one answer cycle and appends both sides of the
// exchange to the conversation.
func (s *Service) AskInConversation(ctx context.Context, conversationID uuid.UUID, question string) (*AskResponse, error) {
	_, err := s.DB.Pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content) VALUES ($1, $2, 'user', $3)`,
		uuid.New(), conversationID, question)
	if err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	cycle, err := s.Orchestrator.Run(ctx, question)
	if err != nil {
		return nil, err
	}
	s.recordCycle(cycle)

	_, err = s.DB.Pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content) VALUES ($1, $2, 'assistant', $3)`,
		uuid.New(), conversationID, renderAnswer(cycle.Answer))
	if err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	_, _ = s.DB.Pool.Exec(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID)
	_, _ = s.DB.Pool.Exec(ctx,
		`UPDATE conversations SET title = $2 WHERE id = $1 AND title = 'New Conversation'`,
		conversationID, truncateTitle(question))

	return &AskResponse{CycleID: cycle.ID, State: cycle.State, Answer: cycle.Answer}, nil
}

// CycleRecord is the persisted audit row for one answer cycle.
type CycleRecord struct {
	ID           uuid.UUID       `json:"id"`
	Query        string          `json:"query"`
	State        string          `json:"state"`
	NeedsSearch  bool            `json:"needs_search"`
	SearchQuery  *string         `json:"search_query,omitempty"`
	PassageCount int             `json:"passage_count"`
	ResultCount  int             `json:"result_count"`
	CitedSources json.RawMessage `json:"cited_sources"`
	Answer       string          `json:"answer"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
}

// GetCycle returns the audit row for one answer cycle, or nil if the cycle
// is unknown.
func (s *Service) GetCycle(ctx context.Context, cycleID uuid.UUID) (*CycleRecord, error) {
	query := `
		SELECT id, query, state, needs_search, search_query, passage_count, result_count, cited_sources, answer, started_at, finished_at
		FROM answer_cycles
		WHERE id = $1
	`
	rec := &CycleRecord{}
	err := s.DB.Pool.QueryRow(ctx, query, cycleID).Scan(
		&rec.ID, &rec.Query, &rec.State, &rec.NeedsSearch, &rec.SearchQuery,
		&rec.PassageCount, &rec.ResultCount, &rec.CitedSources, &rec.Answer,
		&rec.StartedAt, &rec.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cycle: %w", err)
	}
	return rec, nil
}

// CycleLogEntry is one structured log record from an answer cycle.
type CycleLogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetCycleLogs(ctx context.Context, cycleID uuid.UUID) ([]CycleLogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM answer_logs
		WHERE cycle_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle logs: %w", err)
	}
	defer rows.Close()

	var logs []CycleLogEntry
	for rows.Next() {
		var l CycleLogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// ListKnowledgeSources returns the distinct page URLs in the knowledge base.
func (s *Service) ListKnowledgeSources(ctx context.Context) ([]string, error) {
	return s.KB.ListSources(ctx)
}

// KnowledgePage is one indexed page reassembled from its chunks.
type KnowledgePage struct {
	Source  string `json:"source"`
	Title   string `json:"title"`
	Chunks  int    `json:"chunks"`
	Content string `json:"content"`
}

// GetKnowledgePage reassembles one indexed page in chunk order.
func (s *Service) GetKnowledgePage(ctx context.Context, source string) (*KnowledgePage, error) {
	chunks, err := s.KB.GetChunksBySource(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	page := &KnowledgePage{Source: source, Title: chunks[0].Title, Chunks: len(chunks)}
	for i, c := range chunks {
		if i > 0 {
			page.Content += "\n"
		}
		page.Content += c.Content
	}
	return page, nil
}

// recordCycle writes the audit row for a finished cycle. Audit failures are
// logged by the pool, never surfaced: the user already has their answer.
func (s *Service) recordCycle(cycle *agent.Cycle) {
	citedJSON, err := json.Marshal(cycle.Answer.CitedSources)
	if err != nil {
		citedJSON = []byte("[]")
	}

	query := `
		INSERT INTO answer_cycles
			(id, query, state, needs_search, search_query, passage_count, result_count, cited_sources, answer, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	// Background context: the audit row should outlive request cancellation.
	_, _ = s.DB.Pool.Exec(context.Background(), query,
		cycle.ID, cycle.Query, string(cycle.State),
		cycle.Decision.NeedsSearch, cycle.Decision.SearchQuery,
		len(cycle.Evidence.Passages), len(cycle.Evidence.Results),
		citedJSON, cycle.Answer.Body, cycle.StartedAt, cycle.FinishedAt)
}

func renderAnswer(a agent.Answer) string {
	out := a.Body
	for _, d := range a.Disclaimers {
		out += "\n\n" + d
	}
	return out
}

func truncateTitle(question string) string {
	const maxLen = 80
	if len(question) <= maxLen {
		return question
	}
	return question[:maxLen-3] + "..."
}

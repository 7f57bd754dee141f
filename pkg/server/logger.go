package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hautlabor/clinic-assist/pkg/database"
)

// CycleLogHandler is a slog.Handler that persists answer-cycle log records
// to the answer_logs table, keyed by the cycle_id attribute the
// orchestrator attaches to its logger. Records without a cycle_id are
// skipped; the orchestrator is the only intended producer.
type CycleLogHandler struct {
	DB    *database.PostgresDB
	attrs []slog.Attr
}

func NewCycleLogHandler(db *database.PostgresDB) *CycleLogHandler {
	return &CycleLogHandler{DB: db}
}

func (h *CycleLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (h *CycleLogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	cycleID, ok := attrs["cycle_id"]
	if !ok {
		return nil
	}
	delete(attrs, "cycle_id")

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		// Fallback for marshal error
		metaJSON = []byte("{}")
	}

	query := `
		INSERT INTO answer_logs (cycle_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`

	// Use background context so audit records persist even when the request
	// context is already canceled.
	_, err = h.DB.Pool.Exec(context.Background(), query, fmt.Sprint(cycleID), r.Time, r.Level.String(), r.Message, metaJSON)
	return err
}

func (h *CycleLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &CycleLogHandler{DB: h.DB, attrs: merged}
}

func (h *CycleLogHandler) WithGroup(name string) slog.Handler {
	// Groups are not used by the orchestrator's logger.
	return h
}

// Package observability records tool invocations in a SQLite event log,
// kept separate from the registry database to avoid write contention.
//
// Recording is best-effort: a failing event store logs a warning and
// never blocks or fails the tool call it observes.
package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hazyhaar/docsmith/idgen"
	"github.com/hazyhaar/docsmith/kit"
)

// Schema is the DDL for the tool-event log.
const Schema = `
CREATE TABLE IF NOT EXISTS tool_events (
	event_id    TEXT PRIMARY KEY,
	tool        TEXT NOT NULL,
	transport   TEXT NOT NULL,
	success     INTEGER NOT NULL,
	error       TEXT,
	duration_ms INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_events_tool_time ON tool_events(tool, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tool_events_time      ON tool_events(created_at DESC);
`

// ToolEvent is one recorded invocation.
type ToolEvent struct {
	Tool     string
	Success  bool
	Error    string
	Duration time.Duration
}

// EventLogger writes tool events.
type EventLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
}

// Option configures an EventLogger.
type Option func(*EventLogger)

// WithIDGenerator sets a custom event ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger creates a logger backed by the given database. The
// Schema must already be applied.
func NewEventLogger(db *sql.DB, logger *slog.Logger, opts ...Option) *EventLogger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &EventLogger{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		logger: logger,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Record persists one event. Errors are logged, never returned.
func (l *EventLogger) Record(ctx context.Context, ev ToolEvent) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO tool_events (event_id, tool, transport, success, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.newID(), ev.Tool, kit.GetTransport(ctx), ev.Success, ev.Error,
		ev.Duration.Milliseconds(), time.Now().Unix())
	if err != nil {
		l.logger.Warn("tool event not recorded", "tool", ev.Tool, "error", err)
	}
}

// ToolCount returns how many invocations of tool are recorded. Empty tool
// counts everything.
func (l *EventLogger) ToolCount(ctx context.Context, tool string) (int, error) {
	var n int
	var err error
	if tool == "" {
		err = l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tool_events`).Scan(&n)
	} else {
		err = l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tool_events WHERE tool = ?`, tool).Scan(&n)
	}
	return n, err
}

// Middleware wraps an endpoint so every invocation lands in the event
// log with its outcome and duration. The tool name comes from the
// request context (set by kit.RegisterMCPTool).
func Middleware(l *EventLogger) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			ev := ToolEvent{
				Tool:     kit.GetTool(ctx),
				Success:  err == nil,
				Duration: time.Since(start),
			}
			if err != nil {
				ev.Error = err.Error()
			}
			l.Record(ctx, ev)
			return resp, err
		}
	}
}

// Package sqlite is the SQLite-backed runlog.Repository.
//
// WAL mode is enabled on Open so readers never block the writer:
// the workflow goroutine appends rows while an operator (or the
// GetLatest helper) may be reading.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/felipe370-hub/compras-api/internal/coordinator/runlog"

	// Pure-Go SQLite driver; no CGO, so it builds cleanly in
	// Alpine-based images.
	_ "modernc.org/sqlite"
)

// The table is append-only: one immutable row per state transition.
// The latest row per run_id is the run's current state.
const schema = `
CREATE TABLE IF NOT EXISTS workflow_logs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Workflow run identifier.
    run_id          TEXT        NOT NULL,

    -- Lifecycle state at the time this row was written.
    status          TEXT        NOT NULL,

    -- Step that just executed (e.g. "Create_Order_Step").
    current_step    TEXT        NOT NULL DEFAULT '',

    -- JSON input that started the run. Written once on STARTED.
    payload         TEXT,

    -- JSON array of error strings from failures/compensations.
    error_messages  TEXT        NOT NULL DEFAULT '[]',

    -- W3C trace/span ids from the active OTel span.
    trace_id        TEXT        NOT NULL DEFAULT '',
    span_id         TEXT        NOT NULL DEFAULT '',

    -- RFC3339 stored as TEXT, the SQLite idiom.
    updated_at      TEXT        NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workflow_logs_run_id ON workflow_logs(run_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_workflow_logs_trace_id ON workflow_logs(trace_id);
`

type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the
// schema. The pure-Go driver takes pragmas as DSN parameters:
// WAL for concurrent reads, busy_timeout to wait on locks instead
// of failing.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite wants a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts one log row. Safe for concurrent use.
func (r *Repository) Save(ctx context.Context, entry *runlog.Entry) error {
	const q = `
		INSERT INTO workflow_logs
			(run_id, status, current_step, payload, error_messages, trace_id, span_id, updated_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.RunID,
		string(entry.Status),
		entry.CurrentStep,
		nullableString(entry.Payload),
		entry.ErrorMessages,
		entry.TraceID,
		entry.SpanID,
		entry.UpdatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z"),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save workflow log for %q: %w", entry.RunID, err)
	}
	return nil
}

// GetLatest returns the most recent row for one run.
func (r *Repository) GetLatest(ctx context.Context, runID string) (*runlog.Entry, error) {
	const q = `
		SELECT run_id, status, current_step, COALESCE(payload,''), error_messages,
		       trace_id, span_id, updated_at
		FROM   workflow_logs
		WHERE  run_id = ?
		ORDER  BY updated_at DESC, id DESC
		LIMIT  1`

	row := r.db.QueryRowContext(ctx, q, runID)

	var entry runlog.Entry
	var updatedAt string
	err := row.Scan(
		&entry.RunID,
		&entry.Status,
		&entry.CurrentStep,
		&entry.Payload,
		&entry.ErrorMessages,
		&entry.TraceID,
		&entry.SpanID,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite: workflow run %q: %w", runID, runlog.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get latest for %q: %w", runID, err)
	}

	entry.UpdatedAt, err = parseRFC3339(updatedAt)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// nullableString maps "" to NULL so non-STARTED rows keep the
// payload column clean.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

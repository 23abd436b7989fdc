package runlog

import (
	"context"
	"errors"
)

// ErrRunNotFound is returned by readers when a run id has no rows.
var ErrRunNotFound = errors.New("workflow run not found")

// Repository is the port for persisting workflow log entries. The
// coordinator depends on this abstraction, not on SQLite directly,
// so tests can swap in an in-memory implementation.
type Repository interface {
	// Save appends one row. The log is append-only; rows are never
	// updated or deleted.
	Save(ctx context.Context, entry *Entry) error
}

// Reader looks up the current state of a run for the status
// endpoint. The latest row per run id is the run's state.
type Reader interface {
	GetLatest(ctx context.Context, runID string) (*Entry, error)
}

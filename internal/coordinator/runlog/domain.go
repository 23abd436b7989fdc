// Package runlog defines the audit trail of the composite
// order-creation workflow.
//
// Every state transition is appended as an immutable row, giving
// two things:
//
//  1. Observability: the log shows exactly where a workflow run is
//     (or stopped) and joins with the distributed trace through the
//     trace_id column.
//
//  2. Forensics: an orphaned order left behind by a crash between
//     the create and the compensating delete can be found by
//     querying runs stuck in COMPENSATING.
package runlog

import "time"

// Status is the lifecycle state of one workflow run. The states
// mirror the workflow itself: the run starts, each step completes,
// and the run either completes or compensates and fails.
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusFailed       Status = "FAILED"
)

// Entry is a single row of the workflow log: a point-in-time
// snapshot of one run.
type Entry struct {
	// RunID identifies the workflow run. The order-creation
	// workflow uses one request-scoped id so its rows can be read
	// back in sequence.
	RunID string

	// Status is the lifecycle state at the time of this row.
	Status Status

	// CurrentStep names the step that just executed or failed.
	CurrentStep string

	// Payload is the JSON-serialised input that started the run.
	// Written once on the STARTED row, empty afterwards.
	Payload string

	// ErrorMessages is a JSON array of failure details, one per
	// failed step or failed compensation.
	ErrorMessages string

	// TraceID and SpanID come from the OpenTelemetry span active
	// when the row was written, so a log row links straight to the
	// full trace.
	TraceID string
	SpanID  string

	UpdatedAt time.Time
}

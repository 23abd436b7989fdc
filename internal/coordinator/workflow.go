// Package coordinator runs multi-step upstream write workflows with
// best-effort compensation. Steps execute strictly sequentially;
// the first failure stops the run, compensates the already-executed
// steps in reverse order, and surfaces the original error.
//
// Compensation is not a transaction: a crash mid-run can leave
// partial state behind, which is why every transition is appended
// to the workflow run log.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/felipe370-hub/compras-api/internal/coordinator/runlog"
)

// Budget for the whole rollback. Compensation runs detached from
// the request context, so it needs its own bound.
const compensationTimeout = 10 * time.Second

// Step is a single unit of work with a compensating action that
// undoes its effects.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Orchestrator executes an ordered collection of Steps for one run.
type Orchestrator struct {
	runID       string
	payload     string
	steps       []Step
	log         runlog.Repository // nil-safe: persistence skipped if nil
	compensated bool
}

// NewOrchestrator builds a run. runID correlates the log rows;
// payload is the JSON input recorded on the STARTED row; repo may
// be nil, in which case transitions are not persisted.
func NewOrchestrator(runID, payload string, steps []Step, repo runlog.Repository) *Orchestrator {
	return &Orchestrator{
		runID:   runID,
		payload: payload,
		steps:   steps,
		log:     repo,
	}
}

// Start runs the steps in order. On the first failure it rolls back
// the successful steps in LIFO order and returns the step's error;
// rollback errors are logged and swallowed so they never mask the
// root cause.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.record(ctx, runlog.StatusStarted, "", o.payload, nil)

	var done []Step
	for _, step := range o.steps {
		slog.InfoContext(ctx, "executing workflow step", "run_id", o.runID, "step", step.Name())
		if err := step.Execute(ctx); err != nil {
			slog.ErrorContext(ctx, "workflow step failed, rolling back",
				"run_id", o.runID, "step", step.Name(), "error", err)
			// The failure may be ctx itself (workflow budget, caller
			// disconnect); the compensating writes still have to
			// reach the upstream, so they run detached with their
			// own deadline.
			compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
			defer cancel()
			o.record(compCtx, runlog.StatusCompensating, step.Name(), "", []string{err.Error()})
			compErrs := o.rollback(compCtx, done)
			o.record(compCtx, runlog.StatusFailed, step.Name(), "", append([]string{err.Error()}, compErrs...))
			o.compensated = len(done) > 0
			return err
		}
		done = append(done, step)
		o.record(ctx, runlog.StatusStepDone, step.Name(), "", nil)
	}

	o.record(ctx, runlog.StatusCompleted, "", "", nil)
	slog.InfoContext(ctx, "workflow completed", "run_id", o.runID)
	return nil
}

// Compensated reports whether the last Start rolled back at least
// one executed step. False when the run succeeded or when the very
// first step failed and there was nothing to undo.
func (o *Orchestrator) Compensated() bool { return o.compensated }

// rollback compensates the given steps in reverse order and returns
// the messages of any compensations that themselves failed.
func (o *Orchestrator) rollback(ctx context.Context, steps []Step) []string {
	var errs []string
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		slog.InfoContext(ctx, "compensating workflow step", "run_id", o.runID, "step", step.Name())
		if err := step.Compensate(ctx); err != nil {
			slog.ErrorContext(ctx, "CRITICAL: failed to compensate step",
				"run_id", o.runID, "step", step.Name(), "error", err)
			errs = append(errs, "compensation of "+step.Name()+" failed: "+err.Error())
		}
	}
	return errs
}

// record appends a run-log row. Log persistence must never fail the
// workflow, so save errors are only logged.
func (o *Orchestrator) record(ctx context.Context, status runlog.Status, step, payload string, errs []string) {
	if o.log == nil {
		return
	}
	entry := runlog.NewEntry(ctx, o.runID, status, step, payload, errs)
	if err := o.log.Save(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to save workflow log entry",
			"run_id", o.runID, "status", string(status), "error", err)
	}
}

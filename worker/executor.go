package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	ojs "github.com/openjobspec/ojs-go"
	"github.com/openjobspec/ojs-go/durable"
	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/middleware"
	"github.com/openjobspec/ojs-go/wire"
)

// callTimeout bounds coordinator calls the worker makes outside a
// caller-supplied context: claims, outcome reports, checkpoint
// discards.
const callTimeout = 10 * time.Second

// execute runs one claimed job through the middleware chain and its
// registered handler, reports the outcome, and settles the active
// record. Outcome reporting is detached from the execution context:
// by the time a timed-out job needs its failure reported, its own
// context is already dead.
func (w *Worker) execute(ctx context.Context, rec *activeJob) {
	j := rec.job
	defer w.settle(rec)

	emitCtx := context.WithoutCancel(ctx)

	handler, ok := w.registry.Get(j.Type)
	if !ok {
		// No registration means no retry can help. Fail fast, before
		// any middleware runs.
		werr := wire.NoHandler(j.Type)
		w.logger.Error("no handler for claimed job",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
		)
		w.reportFailure(j, werr)
		w.hooks.EmitJobFailed(emitCtx, j, werr)
		return
	}

	if w.gates != nil {
		if err := w.gates.Acquire(ctx, j.Queue); err != nil {
			// Cancelled while waiting for a queue slot. The job never
			// started; the coordinator re-delivers it after the
			// visibility timeout.
			w.logger.Warn("abandoning job while waiting for queue slot",
				slog.String("job_id", j.ID.String()),
				slog.String("queue", j.Queue),
				slog.String("error", err.Error()),
			)
			return
		}
		rec.gated = true
	}

	ex := job.NewExecution(j, w.workerID)

	if w.registry.Durable(j.Type) && w.checkpoints != nil {
		d, err := durable.New(ctx, w.checkpoints, j.ID, j.Attempt, w.logger)
		if err != nil {
			werr := wire.NewError(wire.CodeHandlerError, err.Error(), true)
			w.logger.Warn("durable context unavailable",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
			w.reportFailure(j, werr)
			w.hooks.EmitJobFailed(emitCtx, j, werr)
			return
		}
		ex.Durable = d
	}

	w.hooks.EmitJobStarted(ctx, j)
	w.logger.Debug("job started",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.String("queue", j.Queue),
		slog.Int("attempt", j.Attempt),
	)

	start := time.Now()
	result, err := w.runChain(ctx, ex, handler)
	elapsed := time.Since(start)

	if err != nil {
		werr := classify(ctx, rec, err)
		w.reportFailure(j, werr)
		w.hooks.EmitJobFailed(emitCtx, j, werr)
		w.logger.Warn("job failed",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.String("code", string(werr.Code)),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return
	}

	w.reportSuccess(j, result)
	w.completed.Add(1)

	if ex.Durable != nil {
		// The job is done; its checkpoint has no further use.
		dctx, dcancel := context.WithTimeout(context.Background(), callTimeout)
		if derr := ex.Durable.Complete(dctx); derr != nil {
			w.logger.Warn("checkpoint discard failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", derr.Error()),
			)
		}
		dcancel()
	}

	w.hooks.EmitJobCompleted(emitCtx, j, elapsed)
	w.logger.Debug("job completed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.Duration("elapsed", elapsed),
	)
}

// runChain composes the middleware chain around the handler and
// invokes it. A panic anywhere inside surfaces as a PanicError so a
// handler bug cannot take down the worker.
func (w *Worker) runChain(ctx context.Context, ex *job.Execution, handler job.HandlerFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &middleware.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	run := w.chain.Then(middleware.Handler(handler))
	return run(job.NewContext(ctx, ex), ex)
}

// classify maps a pipeline error to the failure reported to the
// coordinator. The context's cancellation cause decides timeout versus
// handler error; the error text plays no part.
func classify(ctx context.Context, rec *activeJob, err error) *wire.Error {
	if errors.Is(context.Cause(ctx), ojs.ErrExecutionTimeout) {
		return wire.NewError(wire.CodeTimeout,
			fmt.Sprintf("execution exceeded its %s timeout", rec.timeout), true).
			WithDetail("cause", err.Error())
	}

	werr := wire.NewError(wire.CodeHandlerError, err.Error(), true)
	var pe *middleware.PanicError
	if errors.As(err, &pe) {
		werr = werr.WithDetail("stack", string(pe.Stack))
	}
	return werr
}

// reportSuccess acknowledges the job with its serialized result.
// Reporting is best-effort: the outcome is already decided, so a
// transport failure is logged and the coordinator's visibility timeout
// takes over.
func (w *Worker) reportSuccess(j *job.Job, result any) {
	var raw json.RawMessage
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			w.logger.Error("job result not serializable",
				slog.String("job_id", j.ID.String()),
				slog.String("job_type", j.Type),
				slog.String("error", err.Error()),
			)
		} else {
			raw = b
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if _, err := w.coord.Ack(ctx, &wire.AckRequest{JobID: j.ID, Result: raw}); err != nil {
		w.logger.Error("ack failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// reportFailure reports a structured failure, best-effort.
func (w *Worker) reportFailure(j *job.Job, werr *wire.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if _, err := w.coord.Fail(ctx, &wire.FailRequest{JobID: j.ID, Error: werr}); err != nil {
		w.logger.Error("failure report failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// settle runs after every execution regardless of outcome: it stops
// the timeout timer, fires the cancellation cause, drops the active
// record, releases the queue gate, and wakes a drain waiting on the
// last job.
func (w *Worker) settle(rec *activeJob) {
	if rec.timer != nil {
		rec.timer.Stop()
	}
	rec.cancel(nil)

	w.mu.Lock()
	delete(w.active, rec.job.ID.String())
	terminating := w.state == StateTerminate
	settled := w.settled
	w.mu.Unlock()

	if rec.gated {
		w.gates.Release(rec.job.Queue)
	}

	if terminating {
		select {
		case settled <- struct{}{}:
		default:
		}
	}
}

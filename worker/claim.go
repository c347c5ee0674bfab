package worker

import (
	"context"
	"log/slog"
	"time"

	ojs "github.com/openjobspec/ojs-go"
	"github.com/openjobspec/ojs-go/backoff"
	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/wire"
)

// maxClaimBatch caps how many jobs a single claim request asks for,
// regardless of how much concurrency budget is free.
const maxClaimBatch = 10

// claimLoop pulls batches of work while the worker is running. Each
// request asks for at most the remaining concurrency budget, so the
// worker never holds more claims than it can execute. Claim failures
// back off exponentially from PollInterval and never stop the loop.
func (w *Worker) claimLoop(runCtx context.Context, stop <-chan struct{}) {
	defer w.loopWg.Done()

	strategy := backoff.ForPolling(w.cfg.PollInterval)
	consecutiveErrors := 0

	for {
		select {
		case <-stop:
			return
		default:
		}

		available := w.cfg.Concurrency - w.ActiveCount()
		if available <= 0 {
			w.wait(stop, w.cfg.PollInterval)
			continue
		}

		queues := w.cfg.Queues
		if w.gates != nil {
			if queues = w.gates.Eligible(queues); len(queues) == 0 {
				w.wait(stop, w.cfg.PollInterval)
				continue
			}
		}

		ctx, cancel := context.WithTimeout(runCtx, callTimeout)
		resp, err := w.coord.Claim(ctx, &wire.ClaimRequest{
			Queues:              queues,
			Count:               min(available, maxClaimBatch),
			WorkerID:            w.workerID,
			VisibilityTimeoutMS: w.cfg.VisibilityTimeout.Milliseconds(),
		})
		cancel()
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}
			consecutiveErrors++
			delay := strategy.Delay(consecutiveErrors)
			w.logger.Warn("claim failed",
				slog.Int("consecutive_errors", consecutiveErrors),
				slog.Duration("retry_in", delay),
				slog.String("error", err.Error()),
			)
			w.wait(stop, delay)
			continue
		}
		consecutiveErrors = 0

		if len(resp.Jobs) == 0 {
			w.wait(stop, w.cfg.PollInterval)
			continue
		}

		for _, j := range resp.Jobs {
			w.dispatch(j)
		}
		// Work arrived: loop again immediately to drain the backlog.
	}
}

// wait sleeps for d or until the claim loop is stopped.
func (w *Worker) wait(stop <-chan struct{}, d time.Duration) {
	select {
	case <-time.After(d):
	case <-stop:
	}
}

// dispatch registers the claimed job as active and launches its
// execution. The record is inserted before the goroutine starts, so
// the claim loop's next capacity computation already counts it.
func (w *Worker) dispatch(j *job.Job) {
	ctx, cancel := context.WithCancelCause(context.Background())
	rec := &activeJob{job: j, cancel: cancel}

	timeout := j.Timeout()
	if timeout <= 0 {
		if defaults, ok := w.registry.Defaults(j.Type); ok {
			timeout = defaults.Timeout
		}
	}
	if timeout > 0 {
		rec.timeout = timeout
		rec.timer = time.AfterFunc(timeout, func() {
			cancel(ojs.ErrExecutionTimeout)
		})
	}

	w.mu.Lock()
	w.active[j.ID.String()] = rec
	w.mu.Unlock()

	w.execWg.Add(1)
	go func() {
		defer w.execWg.Done()
		w.execute(ctx, rec)
	}()
}

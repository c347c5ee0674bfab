package worker

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/openjobspec/ojs-go/id"
	"github.com/openjobspec/ojs-go/wire"
)

// heartbeatLoop reports liveness until the worker enters terminate and
// applies any state directive the coordinator sends back. It keeps
// running through quiet, so a quieted worker can still be directed.
func (w *Worker) heartbeatLoop(runCtx context.Context, stop <-chan struct{}) {
	defer w.loopWg.Done()

	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.heartbeat(runCtx, &failures)
		}
	}
}

// heartbeat sends one liveness report. Failures are swallowed after
// logging: heartbeats are advisory, and a missed beat must never
// terminate the worker on its own.
func (w *Worker) heartbeat(runCtx context.Context, failures *int) {
	w.mu.Lock()
	state := w.state
	ids := make([]id.JobID, 0, len(w.active))
	for _, rec := range w.active {
		ids = append(ids, rec.job.ID)
	}
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(runCtx, callTimeout)
	defer cancel()

	resp, err := w.coord.Heartbeat(ctx, &wire.HeartbeatRequest{
		WorkerID:     w.workerID,
		State:        string(state),
		ActiveJobs:   len(ids),
		ActiveJobIDs: ids,
		Hostname:     w.hostname,
		PID:          os.Getpid(),
		Queues:       w.cfg.Queues,
		Concurrency:  w.cfg.Concurrency,
		Labels:       w.cfg.Labels,
	})
	if err != nil {
		*failures++
		w.logger.Warn("heartbeat failed",
			slog.Int("consecutive_failures", *failures),
			slog.String("error", err.Error()),
		)
		return
	}
	*failures = 0

	if resp.State != "" && resp.State != string(state) {
		w.applyDirective(context.WithoutCancel(runCtx), resp.State)
	}
}

// applyDirective performs a coordinator-directed lifecycle transition.
// Directives that do not name a reachable state are ignored.
func (w *Worker) applyDirective(ctx context.Context, directive string) {
	switch State(directive) {
	case StateQuiet:
		w.enterQuiet(ctx)
	case StateTerminate:
		w.enterTerminate(ctx, "coordinator directive")
	default:
		w.logger.Debug("ignoring unknown state directive",
			slog.String("directive", directive),
		)
	}
}

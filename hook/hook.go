package hook

import (
	"context"
	"time"

	"github.com/openjobspec/ojs-go/id"
	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/wire"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after a job is successfully enqueued.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called when the worker begins executing a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a job finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job attempt fails. The error value carries
// the failure code that was reported to the coordinator, including
// whether it is retryable.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, jobErr *wire.Error) error
}

// ──────────────────────────────────────────────────
// Worker lifecycle hooks
// ──────────────────────────────────────────────────

// WorkerStarted is called after the worker enters the running state.
type WorkerStarted interface {
	OnWorkerStarted(ctx context.Context, workerID id.WorkerID) error
}

// WorkerStopped is called after the worker has fully terminated, with
// the number of jobs completed during the run and the total uptime.
type WorkerStopped interface {
	OnWorkerStopped(ctx context.Context, workerID id.WorkerID, completed int64, uptime time.Duration) error
}

// WorkerStateChanged is called on every lifecycle state transition,
// including those applied by coordinator directives.
type WorkerStateChanged interface {
	OnWorkerStateChanged(ctx context.Context, workerID id.WorkerID, from, to string) error
}

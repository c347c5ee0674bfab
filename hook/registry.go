package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/openjobspec/ojs-go/id"
	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/wire"
)

// Named entry types pair a hook implementation with the hook name
// captured at registration time. This avoids type-asserting back to
// Hook inside the emit methods.
type jobEnqueuedEntry struct {
	name string
	hook JobEnqueued
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type workerStartedEntry struct {
	name string
	hook WorkerStarted
}

type workerStoppedEntry struct {
	name string
	hook WorkerStopped
}

type workerStateChangedEntry struct {
	name string
	hook WorkerStateChanged
}

// Registry holds registered hooks and dispatches lifecycle events to
// them. It type-caches hooks at registration time so emit calls iterate
// only over hooks that implement the relevant event.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	// Type-cached slices for each lifecycle event.
	jobEnqueued        []jobEnqueuedEntry
	jobStarted         []jobStartedEntry
	jobCompleted       []jobCompletedEntry
	jobFailed          []jobFailedEntry
	workerStarted      []workerStartedEntry
	workerStopped      []workerStoppedEntry
	workerStateChanged []workerStateChangedEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if e, ok := h.(JobEnqueued); ok {
		r.jobEnqueued = append(r.jobEnqueued, jobEnqueuedEntry{name, e})
	}
	if e, ok := h.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, e})
	}
	if e, ok := h.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, e})
	}
	if e, ok := h.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, e})
	}
	if e, ok := h.(WorkerStarted); ok {
		r.workerStarted = append(r.workerStarted, workerStartedEntry{name, e})
	}
	if e, ok := h.(WorkerStopped); ok {
		r.workerStopped = append(r.workerStopped, workerStoppedEntry{name, e})
	}
	if e, ok := h.(WorkerStateChanged); ok {
		r.workerStateChanged = append(r.workerStateChanged, workerStateChangedEntry{name, e})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobEnqueued notifies all hooks that implement JobEnqueued.
func (r *Registry) EmitJobEnqueued(ctx context.Context, j *job.Job) {
	for _, e := range r.jobEnqueued {
		if err := e.hook.OnJobEnqueued(ctx, j); err != nil {
			r.logHookError("OnJobEnqueued", e.name, err)
		}
	}
}

// EmitJobStarted notifies all hooks that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, j); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all hooks that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobFailed notifies all hooks that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr *wire.Error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Worker event emitters
// ──────────────────────────────────────────────────

// EmitWorkerStarted notifies all hooks that implement WorkerStarted.
func (r *Registry) EmitWorkerStarted(ctx context.Context, workerID id.WorkerID) {
	for _, e := range r.workerStarted {
		if err := e.hook.OnWorkerStarted(ctx, workerID); err != nil {
			r.logHookError("OnWorkerStarted", e.name, err)
		}
	}
}

// EmitWorkerStopped notifies all hooks that implement WorkerStopped.
func (r *Registry) EmitWorkerStopped(ctx context.Context, workerID id.WorkerID, completed int64, uptime time.Duration) {
	for _, e := range r.workerStopped {
		if err := e.hook.OnWorkerStopped(ctx, workerID, completed, uptime); err != nil {
			r.logHookError("OnWorkerStopped", e.name, err)
		}
	}
}

// EmitWorkerStateChanged notifies all hooks that implement WorkerStateChanged.
func (r *Registry) EmitWorkerStateChanged(ctx context.Context, workerID id.WorkerID, from, to string) {
	for _, e := range r.workerStateChanged {
		if err := e.hook.OnWorkerStateChanged(ctx, workerID, from, to); err != nil {
			r.logHookError("OnWorkerStateChanged", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated; they must not block the pipeline.
func (r *Registry) logHookError(event, hookName string, err error) {
	r.logger.Warn("lifecycle hook error",
		slog.String("event", event),
		slog.String("hook", hookName),
		slog.String("error", err.Error()),
	)
}

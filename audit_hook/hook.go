package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openjobspec/ojs-go/hook"
	"github.com/openjobspec/ojs-go/id"
	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/wire"
)

// Compile-time interface checks.
var (
	_ hook.Hook               = (*Hook)(nil)
	_ hook.JobEnqueued        = (*Hook)(nil)
	_ hook.JobStarted         = (*Hook)(nil)
	_ hook.JobCompleted       = (*Hook)(nil)
	_ hook.JobFailed          = (*Hook)(nil)
	_ hook.WorkerStarted      = (*Hook)(nil)
	_ hook.WorkerStopped      = (*Hook)(nil)
	_ hook.WorkerStateChanged = (*Hook)(nil)
)

// Recorder is the interface audit backends must implement. It is
// defined locally so this package depends on no particular audit
// product — callers inject the concrete backend at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *Event) error
}

// RecorderFunc adapts a plain function to a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Event is one audit record.
type Event struct {
	// What happened.
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details.
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// Hook bridges lifecycle events to an audit trail backend. Each
// lifecycle notification emits a structured audit event through the
// [Recorder].
type Hook struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates a Hook that emits audit events through the provided
// Recorder.
func New(r Recorder, opts ...Option) *Hook {
	h := &Hook{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements hook.Hook.
func (h *Hook) Name() string { return "audit" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements hook.JobEnqueued.
func (h *Hook) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return h.record(ctx, ActionJobEnqueued, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, "",
		"job_type", j.Type,
		"queue", j.Queue,
	)
}

// OnJobStarted implements hook.JobStarted.
func (h *Hook) OnJobStarted(ctx context.Context, j *job.Job) error {
	return h.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, "",
		"job_type", j.Type,
		"queue", j.Queue,
		"attempt", j.Attempt,
	)
}

// OnJobCompleted implements hook.JobCompleted.
func (h *Hook) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return h.record(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, "",
		"job_type", j.Type,
		"queue", j.Queue,
		"attempt", j.Attempt,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements hook.JobFailed. Retryable failures are
// warnings (another attempt follows); non-retryable ones are critical.
func (h *Hook) OnJobFailed(ctx context.Context, j *job.Job, jobErr *wire.Error) error {
	severity := SeverityCritical
	if jobErr.Retryable {
		severity = SeverityWarning
	}
	return h.record(ctx, ActionJobFailed, severity, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, jobErr.Message,
		"job_type", j.Type,
		"queue", j.Queue,
		"attempt", j.Attempt,
		"max_attempts", j.MaxAttempts,
		"code", string(jobErr.Code),
		"retryable", jobErr.Retryable,
	)
}

// ── Worker lifecycle hooks ──────────────────────────

// OnWorkerStarted implements hook.WorkerStarted.
func (h *Hook) OnWorkerStarted(ctx context.Context, workerID id.WorkerID) error {
	return h.record(ctx, ActionWorkerStarted, SeverityInfo, OutcomeSuccess,
		ResourceWorker, workerID.String(), CategoryWorker, "")
}

// OnWorkerStopped implements hook.WorkerStopped.
func (h *Hook) OnWorkerStopped(ctx context.Context, workerID id.WorkerID, completed int64, uptime time.Duration) error {
	return h.record(ctx, ActionWorkerStopped, SeverityInfo, OutcomeSuccess,
		ResourceWorker, workerID.String(), CategoryWorker, "",
		"completed_jobs", completed,
		"uptime_ms", uptime.Milliseconds(),
	)
}

// OnWorkerStateChanged implements hook.WorkerStateChanged.
func (h *Hook) OnWorkerStateChanged(ctx context.Context, workerID id.WorkerID, from, to string) error {
	return h.record(ctx, ActionWorkerStateChanged, SeverityInfo, OutcomeSuccess,
		ResourceWorker, workerID.String(), CategoryWorker, "",
		"from", from,
		"to", to,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// kvPairs is a list of key-value pairs added to Metadata.
func (h *Hook) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category, reason string,
	kvPairs ...any,
) error {
	if h.enabled != nil && !h.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if err := h.recorder.Record(ctx, evt); err != nil {
		// Audit must never break the pipeline; the registry already
		// swallows hook errors, this log keeps the loss visible.
		h.logger.Warn("audit record failed",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

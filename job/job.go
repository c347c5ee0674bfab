package job

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/openjobspec/ojs-go/id"
)

// State represents the lifecycle state of a job as tracked by the
// coordinator. Workers never set these directly; the coordinator
// reports the resulting state after an acknowledge or failure call.
type State string

const (
	// StateAvailable means the job is waiting to be claimed.
	StateAvailable State = "available"
	// StateActive means a worker has claimed the job and is executing it.
	StateActive State = "active"
	// StateCompleted means the job finished successfully.
	StateCompleted State = "completed"
	// StateRetryScheduled means the job failed and is waiting for its
	// next attempt.
	StateRetryScheduled State = "retry_scheduled"
	// StateFailed means the job failed and exhausted its attempts.
	StateFailed State = "failed"
	// StateCancelled means the job was explicitly cancelled.
	StateCancelled State = "cancelled"
)

// Job is the wire envelope for one unit of work, as delivered by a
// claim call. The payload is an opaque JSON value decoded by the typed
// handler registered for the job's type.
type Job struct {
	ID          id.JobID          `json:"id"`
	Type        string            `json:"type"`
	Queue       string            `json:"queue"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Attempt     int               `json:"attempt"`
	MaxAttempts int               `json:"max_attempts,omitempty"`
	TimeoutMS   int64             `json:"timeout_ms,omitempty"`
	WorkflowID  id.WorkflowID     `json:"workflow_id,omitempty"`
	EnqueuedAt  time.Time         `json:"enqueued_at"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Timeout returns the job's execution timeout, or zero when the
// envelope does not carry one.
func (j *Job) Timeout() time.Duration {
	return time.Duration(j.TimeoutMS) * time.Millisecond
}

// Namespace returns the leading dot-separated segment of the job type,
// e.g. "email" for "email.send". A type without a dot is its own
// namespace.
func (j *Job) Namespace() string {
	if i := strings.IndexByte(j.Type, '.'); i >= 0 {
		return j.Type[:i]
	}
	return j.Type
}

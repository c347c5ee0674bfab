package wire

import (
	"encoding/json"
	"time"

	"github.com/openjobspec/ojs-go/durable"
	"github.com/openjobspec/ojs-go/id"
	"github.com/openjobspec/ojs-go/job"
)

// ── Session establishment ───────────────────────────

// AuthRequest is the first frame on a socket connection. Format names
// the codec the client wants for the rest of the session.
type AuthRequest struct {
	Token  string `json:"token,omitempty"`
	Format string `json:"format,omitempty"`
}

// AuthResponse confirms the session and the negotiated codec.
type AuthResponse struct {
	Format    string `json:"format"`
	SessionID string `json:"session_id"`
}

// ── Worker calls ────────────────────────────────────

// ClaimRequest reserves a batch of available jobs for a worker.
type ClaimRequest struct {
	Queues              []string    `json:"queues"`
	Count               int         `json:"count"`
	WorkerID            id.WorkerID `json:"worker_id"`
	VisibilityTimeoutMS int64       `json:"visibility_timeout_ms"`
}

// ClaimResponse carries the claimed envelopes, possibly fewer than
// requested and possibly none.
type ClaimResponse struct {
	Jobs []*job.Job `json:"jobs"`
}

// AckRequest acknowledges a successful job with its result payload.
type AckRequest struct {
	JobID  id.JobID        `json:"job_id"`
	Result json.RawMessage `json:"result,omitempty"`
}

// AckResponse confirms the acknowledgement.
type AckResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// FailRequest reports a failed job with a structured error. Whether a
// retry happens is the coordinator's decision.
type FailRequest struct {
	JobID id.JobID `json:"job_id"`
	Error *Error   `json:"error"`
}

// FailResponse reports the job's resulting state and, when a retry was
// scheduled, the time of the next attempt.
type FailResponse struct {
	State         job.State  `json:"state"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
}

// HeartbeatRequest reports worker liveness and load.
type HeartbeatRequest struct {
	WorkerID     id.WorkerID       `json:"worker_id"`
	State        string            `json:"state"`
	ActiveJobs   int               `json:"active_jobs"`
	ActiveJobIDs []id.JobID        `json:"active_job_ids"`
	Hostname     string            `json:"hostname"`
	PID          int               `json:"pid"`
	Queues       []string          `json:"queues"`
	Concurrency  int               `json:"concurrency"`
	Labels       map[string]string `json:"labels,omitempty"`
}

// HeartbeatResponse optionally directs the worker into a new lifecycle
// state ("quiet" or "terminate"). Empty means no directive.
type HeartbeatResponse struct {
	State string `json:"state,omitempty"`
}

// ── Checkpoint calls (durable jobs) ─────────────────

// CheckpointGetRequest fetches a durable job's checkpoint.
type CheckpointGetRequest struct {
	JobID string `json:"job_id"`
}

// CheckpointGetResponse returns a durable job's checkpoint, when one
// exists.
type CheckpointGetResponse struct {
	HasCheckpoint bool              `json:"has_checkpoint"`
	Checkpoint    *durable.Snapshot `json:"checkpoint,omitempty"`
}

// CheckpointSaveRequest persists a durable job's checkpoint: handler
// state, step index, and replay metadata.
type CheckpointSaveRequest struct {
	JobID      string            `json:"job_id"`
	Checkpoint *durable.Snapshot `json:"checkpoint"`
}

// CheckpointDeleteRequest discards a durable job's checkpoint.
type CheckpointDeleteRequest struct {
	JobID string `json:"job_id"`
}

// ── Client calls ────────────────────────────────────

// JobRequest submits a new job for execution.
type JobRequest struct {
	Type           string            `json:"type"`
	Payload        json.RawMessage   `json:"payload,omitempty"`
	Queue          string            `json:"queue,omitempty"`
	Priority       int               `json:"priority,omitempty"`
	DelayMS        int64             `json:"delay_ms,omitempty"`
	TimeoutMS      int64             `json:"timeout_ms,omitempty"`
	MaxAttempts    int               `json:"max_attempts,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`
}

// EnqueueResponse returns the created job envelope.
type EnqueueResponse struct {
	Job *job.Job `json:"job"`
}

// ── Admin calls ─────────────────────────────────────

// Queue describes a named queue.
type Queue struct {
	Name   string `json:"name"`
	Paused bool   `json:"paused,omitempty"`
}

// ScheduleRequest creates or replaces a recurring schedule that
// enqueues the given job on a cron expression.
type ScheduleRequest struct {
	Name     string      `json:"name"`
	Cron     string      `json:"cron"`
	Timezone string      `json:"timezone,omitempty"`
	Job      *JobRequest `json:"job"`
}

// Schedule describes a recurring schedule as stored by the coordinator.
type Schedule struct {
	ID        id.ScheduleID `json:"id"`
	Name      string        `json:"name"`
	Cron      string        `json:"cron"`
	Timezone  string        `json:"timezone,omitempty"`
	NextRunAt time.Time     `json:"next_run_at"`
	Job       *JobRequest   `json:"job"`
}

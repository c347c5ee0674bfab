package durable

import (
	"context"
	"encoding/json"

	"github.com/openjobspec/ojs-go/id"
)

// Kind classifies a replay log entry by the operation that produced it.
type Kind string

// Entry kinds for each non-deterministic operation.
const (
	KindTime   Kind = "time"
	KindRandom Kind = "random"
	KindCall   Kind = "call"
)

// Entry is one recorded non-deterministic outcome. Its position in the
// log, once assigned, never changes.
type Entry struct {
	Seq    int             `json:"seq"`
	Kind   Kind            `json:"kind"`
	Key    string          `json:"key,omitempty"`
	Result json.RawMessage `json:"result"`
}

// Metadata carries the replay log and the attempt that produced it.
type Metadata struct {
	ReplayLog []Entry `json:"replay_log"`
	Attempt   int     `json:"attempt"`
}

// Snapshot is the persisted checkpoint for one job: opaque handler
// state, the index of the last completed step, and the replay metadata.
type Snapshot struct {
	State     json.RawMessage `json:"state,omitempty"`
	StepIndex int             `json:"step_index"`
	Metadata  Metadata        `json:"metadata"`
}

// CheckpointStore is the persistence seam for durable checkpoints.
// The coordinator-backed implementation lives in the transport package;
// tests may substitute an in-memory one.
type CheckpointStore interface {
	// Load fetches the checkpoint for a job. It returns (nil, nil) when
	// no checkpoint exists.
	Load(ctx context.Context, jobID id.JobID) (*Snapshot, error)

	// Save persists the checkpoint for a job, replacing any previous one.
	Save(ctx context.Context, jobID id.JobID, snap *Snapshot) error

	// Delete discards the checkpoint for a job. Deleting a checkpoint
	// that does not exist is not an error.
	Delete(ctx context.Context, jobID id.JobID) error
}

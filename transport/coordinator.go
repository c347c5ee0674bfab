package transport

import (
	"context"

	"github.com/openjobspec/ojs-go/durable"
	"github.com/openjobspec/ojs-go/id"
	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/wire"
)

// Coordinator wraps a Transport with the typed protocol operations so
// callers never assemble methods, keys, or payloads by hand.
type Coordinator struct {
	t Transport
}

// NewCoordinator wraps a transport binding.
func NewCoordinator(t Transport) *Coordinator {
	return &Coordinator{t: t}
}

// Transport returns the underlying binding.
func (c *Coordinator) Transport() Transport { return c.t }

// Close closes the underlying binding.
func (c *Coordinator) Close() error { return c.t.Close() }

// ── Worker operations ───────────────────────────────

// Claim reserves up to req.Count jobs from the requested queues.
func (c *Coordinator) Claim(ctx context.Context, req *wire.ClaimRequest) (*wire.ClaimResponse, error) {
	var resp wire.ClaimResponse
	if err := c.t.Do(ctx, Request{Method: wire.MethodClaim, Body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ack reports a successful job with its result payload.
func (c *Coordinator) Ack(ctx context.Context, req *wire.AckRequest) (*wire.AckResponse, error) {
	var resp wire.AckResponse
	if err := c.t.Do(ctx, Request{Method: wire.MethodAck, Key: req.JobID.String(), Body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Fail reports a failed job with its structured error.
func (c *Coordinator) Fail(ctx context.Context, req *wire.FailRequest) (*wire.FailResponse, error) {
	var resp wire.FailResponse
	if err := c.t.Do(ctx, Request{Method: wire.MethodFail, Key: req.JobID.String(), Body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Heartbeat reports worker liveness. The response may carry a
// coordinator-directed state transition.
func (c *Coordinator) Heartbeat(ctx context.Context, req *wire.HeartbeatRequest) (*wire.HeartbeatResponse, error) {
	var resp wire.HeartbeatResponse
	if err := c.t.Do(ctx, Request{Method: wire.MethodHeartbeat, Body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ── Client operations ───────────────────────────────

// Enqueue submits a job and returns the created envelope.
func (c *Coordinator) Enqueue(ctx context.Context, req *wire.JobRequest) (*job.Job, error) {
	var resp wire.EnqueueResponse
	if err := c.t.Do(ctx, Request{Method: wire.MethodEnqueue, Body: req}, &resp); err != nil {
		return nil, err
	}
	return resp.Job, nil
}

// EnsureQueue creates the queue if it does not exist and applies the
// given configuration if it does.
func (c *Coordinator) EnsureQueue(ctx context.Context, q wire.Queue) error {
	return c.t.Do(ctx, Request{Method: wire.MethodQueueEnsure, Key: q.Name, Body: q}, nil)
}

// UpsertSchedule creates or replaces a recurring schedule.
func (c *Coordinator) UpsertSchedule(ctx context.Context, req *wire.ScheduleRequest) (*wire.Schedule, error) {
	var resp wire.Schedule
	if err := c.t.Do(ctx, Request{Method: wire.MethodScheduleUpsert, Key: req.Name, Body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteSchedule removes a recurring schedule by name.
func (c *Coordinator) DeleteSchedule(ctx context.Context, name string) error {
	return c.t.Do(ctx, Request{
		Method: wire.MethodScheduleDelete,
		Key:    name,
		Body:   struct {
			Name string `json:"name"`
		}{Name: name},
	}, nil)
}

// ── Checkpoint operations (durable jobs) ────────────

// CheckpointGet fetches a durable job's checkpoint.
func (c *Coordinator) CheckpointGet(ctx context.Context, jobID id.JobID) (*wire.CheckpointGetResponse, error) {
	var resp wire.CheckpointGetResponse
	req := wire.CheckpointGetRequest{JobID: jobID.String()}
	if err := c.t.Do(ctx, Request{Method: wire.MethodCheckpointGet, Key: req.JobID, Body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckpointSave persists a durable job's checkpoint.
func (c *Coordinator) CheckpointSave(ctx context.Context, jobID id.JobID, snap *durable.Snapshot) error {
	req := wire.CheckpointSaveRequest{JobID: jobID.String(), Checkpoint: snap}
	return c.t.Do(ctx, Request{Method: wire.MethodCheckpointSave, Key: req.JobID, Body: req}, nil)
}

// CheckpointDelete discards a durable job's checkpoint.
func (c *Coordinator) CheckpointDelete(ctx context.Context, jobID id.JobID) error {
	req := wire.CheckpointDeleteRequest{JobID: jobID.String()}
	return c.t.Do(ctx, Request{Method: wire.MethodCheckpointDelete, Key: req.JobID, Body: req}, nil)
}

// Package ojstest provides an in-memory coordinator for testing
// workers and clients without a running server.
//
// [Coordinator] implements [transport.Transport] directly: payloads
// are round-tripped through JSON exactly as the HTTP and socket
// bindings serialize them, so tests exercise the same encode and
// decode paths as production code. Seed jobs, point a worker at the
// coordinator, and assert on the recorded traffic:
//
//	co := ojstest.New()
//	co.Seed(ojstest.NewJob("email.send", map[string]string{"to": "a@b.example"}))
//
//	w := worker.New(co, reg, worker.WithPollInterval(10*time.Millisecond))
//	_ = w.Start(ctx)
//	// ... wait for work to finish ...
//	acks := co.Acks()
package ojstest

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/openjobspec/ojs-go/durable"
	"github.com/openjobspec/ojs-go/id"
	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/transport"
	"github.com/openjobspec/ojs-go/wire"
)

var _ transport.Transport = (*Coordinator)(nil)

// Coordinator is an in-memory coordinator double. Jobs seeded with
// Seed (or submitted through job.enqueue) are handed out FIFO to
// claim calls, and every request a worker or client sends is recorded
// for inspection. Construct one per test; there is no global state.
//
// Delay and priority are ignored: seeded order is claim order.
type Coordinator struct {
	mu sync.Mutex

	available   []*job.Job
	claims      []wire.ClaimRequest
	acks        []wire.AckRequest
	fails       []wire.FailRequest
	heartbeats  []wire.HeartbeatRequest
	enqueues    []wire.JobRequest
	checkpoints map[string]*durable.Snapshot
	queues      map[string]wire.Queue
	schedules   map[string]wire.Schedule

	directive string
	errs      map[string]error
	calls     map[string]int

	closed bool
}

// New creates an empty coordinator.
func New() *Coordinator {
	return &Coordinator{
		checkpoints: make(map[string]*durable.Snapshot),
		queues:      make(map[string]wire.Queue),
		schedules:   make(map[string]wire.Schedule),
		errs:        make(map[string]error),
		calls:       make(map[string]int),
	}
}

// NewJob builds a claimable envelope for jobType on the default queue,
// with the payload marshalled to JSON. Panics if the payload does not
// marshal; tests should notice that immediately.
func NewJob(jobType string, payload any) *job.Job {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			panic(fmt.Sprintf("ojstest: marshal payload: %v", err))
		}
		raw = b
	}
	return &job.Job{
		ID:          id.NewJobID(),
		Type:        jobType,
		Queue:       "default",
		Payload:     raw,
		Attempt:     1,
		MaxAttempts: 3,
		EnqueuedAt:  time.Now().UTC(),
	}
}

// ── Seeding and scripting ───────────────────────────

// Seed appends jobs to the claimable backlog in the given order.
func (c *Coordinator) Seed(jobs ...*job.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, j := range jobs {
		cp := *j
		c.available = append(c.available, &cp)
	}
}

// SetDirective arms a lifecycle directive ("quiet" or "terminate")
// that is delivered with the next heartbeat response, then cleared.
func (c *Coordinator) SetDirective(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.directive = state
}

// FailWith makes every call of the given wire method (for example
// [wire.MethodClaim]) fail with err until cleared by passing nil.
func (c *Coordinator) FailWith(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.errs, method)
		return
	}
	c.errs[method] = err
}

// ── Recorded traffic ────────────────────────────────

// Claims returns a copy of every claim request received.
func (c *Coordinator) Claims() []wire.ClaimRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.ClaimRequest(nil), c.claims...)
}

// Acks returns a copy of every acknowledgement received.
func (c *Coordinator) Acks() []wire.AckRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.AckRequest(nil), c.acks...)
}

// Fails returns a copy of every failure report received.
func (c *Coordinator) Fails() []wire.FailRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.FailRequest(nil), c.fails...)
}

// Heartbeats returns a copy of every heartbeat received.
func (c *Coordinator) Heartbeats() []wire.HeartbeatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.HeartbeatRequest(nil), c.heartbeats...)
}

// Enqueues returns a copy of every enqueue request received.
func (c *Coordinator) Enqueues() []wire.JobRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.JobRequest(nil), c.enqueues...)
}

// Pending returns how many seeded or enqueued jobs remain unclaimed.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.available)
}

// Calls returns how many times the given wire method was attempted,
// counting calls that failed with a scripted error.
func (c *Coordinator) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// Checkpoint returns the stored checkpoint for a job, or nil.
func (c *Coordinator) Checkpoint(jobID id.JobID) *durable.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkpoints[jobID.String()]
}

// Queue returns a queue registered through queue.ensure.
func (c *Coordinator) Queue(name string) (wire.Queue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[name]
	return q, ok
}

// Schedule returns a schedule registered through schedule.upsert.
func (c *Coordinator) Schedule(name string) (wire.Schedule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.schedules[name]
	return s, ok
}

// ── transport.Transport ─────────────────────────────

// Do routes one wire operation onto the in-memory state.
func (c *Coordinator) Do(ctx context.Context, req transport.Request, result any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &transport.ConnError{Op: req.Method, Err: net.ErrClosed}
	}
	c.calls[req.Method]++
	if err := c.errs[req.Method]; err != nil {
		return err
	}

	switch req.Method {
	case wire.MethodClaim:
		return c.claim(req, result)
	case wire.MethodHeartbeat:
		return c.heartbeat(req, result)
	case wire.MethodAck:
		return c.ack(req, result)
	case wire.MethodFail:
		return c.fail(req, result)
	case wire.MethodEnqueue:
		return c.enqueue(req, result)
	case wire.MethodCheckpointGet:
		return c.checkpointGet(req, result)
	case wire.MethodCheckpointSave:
		return c.checkpointSave(req)
	case wire.MethodCheckpointDelete:
		delete(c.checkpoints, req.Key)
		return nil
	case wire.MethodQueueEnsure:
		return c.queueEnsure(req)
	case wire.MethodScheduleUpsert:
		return c.scheduleUpsert(req, result)
	case wire.MethodScheduleDelete:
		delete(c.schedules, req.Key)
		return nil
	default:
		return wire.NewError(wire.CodeInvalidRequest, fmt.Sprintf("unknown method %q", req.Method), false)
	}
}

// Close makes every subsequent call fail with a connection error.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// ── Operation handlers (mu held) ────────────────────

func (c *Coordinator) claim(req transport.Request, result any) error {
	var cr wire.ClaimRequest
	if err := transcode(req.Body, &cr); err != nil {
		return err
	}
	c.claims = append(c.claims, cr)

	wanted := make(map[string]bool, len(cr.Queues))
	for _, q := range cr.Queues {
		wanted[q] = true
	}

	var claimed []*job.Job
	rest := c.available[:0:0]
	for _, j := range c.available {
		if len(claimed) < cr.Count && wanted[j.Queue] {
			claimed = append(claimed, j)
			continue
		}
		rest = append(rest, j)
	}
	c.available = rest

	return transcode(wire.ClaimResponse{Jobs: claimed}, result)
}

func (c *Coordinator) heartbeat(req transport.Request, result any) error {
	var hr wire.HeartbeatRequest
	if err := transcode(req.Body, &hr); err != nil {
		return err
	}
	c.heartbeats = append(c.heartbeats, hr)

	resp := wire.HeartbeatResponse{State: c.directive}
	c.directive = ""
	return transcode(resp, result)
}

func (c *Coordinator) ack(req transport.Request, result any) error {
	var ar wire.AckRequest
	if err := transcode(req.Body, &ar); err != nil {
		return err
	}
	c.acks = append(c.acks, ar)
	return transcode(wire.AckResponse{Acknowledged: true}, result)
}

func (c *Coordinator) fail(req transport.Request, result any) error {
	var fr wire.FailRequest
	if err := transcode(req.Body, &fr); err != nil {
		return err
	}
	c.fails = append(c.fails, fr)
	return transcode(wire.FailResponse{State: job.StateRetryScheduled}, result)
}

func (c *Coordinator) enqueue(req transport.Request, result any) error {
	var jr wire.JobRequest
	if err := transcode(req.Body, &jr); err != nil {
		return err
	}
	c.enqueues = append(c.enqueues, jr)

	queueName := jr.Queue
	if queueName == "" {
		queueName = "default"
	}
	j := &job.Job{
		ID:          id.NewJobID(),
		Type:        jr.Type,
		Queue:       queueName,
		Payload:     jr.Payload,
		Attempt:     1,
		MaxAttempts: jr.MaxAttempts,
		TimeoutMS:   jr.TimeoutMS,
		EnqueuedAt:  time.Now().UTC(),
		Meta:        jr.Meta,
	}
	c.available = append(c.available, j)

	return transcode(wire.EnqueueResponse{Job: j}, result)
}

func (c *Coordinator) checkpointGet(req transport.Request, result any) error {
	var gr wire.CheckpointGetRequest
	if err := transcode(req.Body, &gr); err != nil {
		return err
	}
	snap := c.checkpoints[gr.JobID]
	return transcode(wire.CheckpointGetResponse{
		HasCheckpoint: snap != nil,
		Checkpoint:    snap,
	}, result)
}

func (c *Coordinator) checkpointSave(req transport.Request) error {
	var sr wire.CheckpointSaveRequest
	if err := transcode(req.Body, &sr); err != nil {
		return err
	}
	if sr.Checkpoint == nil {
		return wire.NewError(wire.CodeInvalidRequest, "checkpoint.save without a checkpoint", false)
	}
	// Deep-copy so later caller mutations cannot reach stored state.
	var saved durable.Snapshot
	if err := transcode(sr.Checkpoint, &saved); err != nil {
		return err
	}
	c.checkpoints[sr.JobID] = &saved
	return nil
}

func (c *Coordinator) queueEnsure(req transport.Request) error {
	var q wire.Queue
	if err := transcode(req.Body, &q); err != nil {
		return err
	}
	if q.Name == "" {
		q.Name = req.Key
	}
	c.queues[q.Name] = q
	return nil
}

func (c *Coordinator) scheduleUpsert(req transport.Request, result any) error {
	var sr wire.ScheduleRequest
	if err := transcode(req.Body, &sr); err != nil {
		return err
	}
	sched := wire.Schedule{
		ID:        id.NewScheduleID(),
		Name:      sr.Name,
		Cron:      sr.Cron,
		Timezone:  sr.Timezone,
		NextRunAt: time.Now().UTC().Add(time.Minute),
		Job:       sr.Job,
	}
	if existing, ok := c.schedules[sr.Name]; ok {
		sched.ID = existing.ID
	}
	c.schedules[sr.Name] = sched
	return transcode(sched, result)
}

// transcode copies in to out through JSON, mirroring a wire round
// trip. A nil out discards the response.
func transcode(in, out any) error {
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ojstest: encode: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("ojstest: decode: %w", err)
	}
	return nil
}

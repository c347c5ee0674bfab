package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openjobspec/ojs-go/hook"
	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/middleware"
	"github.com/openjobspec/ojs-go/transport"
	"github.com/openjobspec/ojs-go/wire"
)

// Client submits jobs to a coordinator and manages queues and
// schedules. Safe for concurrent use.
type Client struct {
	coord        *transport.Coordinator
	interceptors *middleware.EnqueueChain
	hooks        *hook.Registry
	logger       *slog.Logger
	defaultQueue string
	batchLimit   int

	initHooks []hook.Hook
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithDefaultQueue sets the queue used when an enqueue names none.
func WithDefaultQueue(queue string) Option {
	return func(c *Client) { c.defaultQueue = queue }
}

// WithBatchConcurrency bounds how many enqueue requests EnqueueBatch
// has in flight at once. Defaults to 8.
func WithBatchConcurrency(n int) Option {
	return func(c *Client) { c.batchLimit = n }
}

// WithHooks registers lifecycle hooks at construction. The client
// emits JobEnqueued after each successful submission.
func WithHooks(hooks ...hook.Hook) Option {
	return func(c *Client) { c.initHooks = append(c.initHooks, hooks...) }
}

// New creates a client over the given transport binding.
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		coord:        transport.NewCoordinator(t),
		interceptors: middleware.NewEnqueueChain(),
		logger:       slog.Default(),
		defaultQueue: "default",
		batchLimit:   8,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.hooks = hook.NewRegistry(c.logger)
	for _, h := range c.initHooks {
		c.hooks.Register(h)
	}
	c.initHooks = nil
	return c
}

// Coordinator returns the typed operation surface over the client's
// transport, for calls the Client does not wrap itself.
func (c *Client) Coordinator() *transport.Coordinator { return c.coord }

// Interceptors returns the enqueue interceptor chain. Edits apply to
// submissions started after the edit.
func (c *Client) Interceptors() *middleware.EnqueueChain { return c.interceptors }

// Intercept appends a named enqueue interceptor. Shorthand for
// Interceptors().Use.
func (c *Client) Intercept(name string, fn middleware.EnqueueFunc) {
	c.interceptors.Use(name, fn)
}

// Close closes the underlying transport.
func (c *Client) Close() error { return c.coord.Close() }

// EnqueueOption adjusts one submission.
type EnqueueOption func(*wire.JobRequest)

// WithQueue routes the job to a specific queue.
func WithQueue(queue string) EnqueueOption {
	return func(r *wire.JobRequest) { r.Queue = queue }
}

// WithPriority sets the claim priority. Higher values are claimed
// first.
func WithPriority(p int) EnqueueOption {
	return func(r *wire.JobRequest) { r.Priority = p }
}

// WithDelay makes the job claimable only after d has elapsed.
func WithDelay(d time.Duration) EnqueueOption {
	return func(r *wire.JobRequest) { r.DelayMS = d.Milliseconds() }
}

// WithTimeout sets the per-attempt execution timeout enforced by the
// worker.
func WithTimeout(d time.Duration) EnqueueOption {
	return func(r *wire.JobRequest) { r.TimeoutMS = d.Milliseconds() }
}

// WithMaxAttempts sets the total attempt budget, including the first
// run.
func WithMaxAttempts(n int) EnqueueOption {
	return func(r *wire.JobRequest) { r.MaxAttempts = n }
}

// WithIdempotencyKey deduplicates submissions: the coordinator returns
// the existing job when it has already seen the key.
func WithIdempotencyKey(key string) EnqueueOption {
	return func(r *wire.JobRequest) { r.IdempotencyKey = key }
}

// WithMeta attaches one opaque metadata pair to the job envelope.
func WithMeta(key, value string) EnqueueOption {
	return func(r *wire.JobRequest) {
		if r.Meta == nil {
			r.Meta = make(map[string]string, 1)
		}
		r.Meta[key] = value
	}
}

// Enqueue submits one job and returns the created envelope. The
// payload is JSON-marshalled; the request then runs through the
// interceptor chain before reaching the coordinator. A (nil, nil)
// return means an interceptor dropped the job.
func (c *Client) Enqueue(ctx context.Context, jobType string, payload any, opts ...EnqueueOption) (*job.Job, error) {
	req, err := c.newRequest(jobType, payload, opts...)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, req)
}

// newRequest assembles the wire request for one submission.
func (c *Client) newRequest(jobType string, payload any, opts ...EnqueueOption) (*wire.JobRequest, error) {
	if jobType == "" {
		return nil, fmt.Errorf("ojs: enqueue: empty job type")
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("ojs: enqueue %q: marshal payload: %w", jobType, err)
		}
		raw = data
	}

	req := &wire.JobRequest{
		Type:    jobType,
		Payload: raw,
		Queue:   c.defaultQueue,
	}
	for _, opt := range opts {
		opt(req)
	}
	return req, nil
}

// submit runs the interceptor chain and sends the surviving request.
func (c *Client) submit(ctx context.Context, req *wire.JobRequest) (*job.Job, error) {
	run := c.interceptors.Then(func(ctx context.Context, r *wire.JobRequest) (*job.Job, error) {
		return c.coord.Enqueue(ctx, r)
	})

	j, err := run(ctx, req)
	if err != nil {
		return nil, err
	}
	if j == nil {
		c.logger.Debug("job dropped by enqueue interceptor",
			slog.String("job_type", req.Type),
		)
		return nil, nil
	}

	c.hooks.EmitJobEnqueued(ctx, j)
	c.logger.Debug("job enqueued",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.String("queue", j.Queue),
	)
	return j, nil
}

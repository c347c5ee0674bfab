package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openjobspec/ojs-go/client"
	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/middleware"
	"github.com/openjobspec/ojs-go/ojstest"
	"github.com/openjobspec/ojs-go/wire"
	"github.com/openjobspec/ojs-go/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(co *ojstest.Coordinator, opts ...client.Option) *client.Client {
	base := []client.Option{client.WithLogger(testLogger())}
	return client.New(co, append(base, opts...)...)
}

func TestEnqueue(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co)

	j, err := c.Enqueue(context.Background(), "email.send",
		map[string]string{"to": "user@example.com"},
		client.WithQueue("email"),
		client.WithPriority(5),
		client.WithTimeout(30*time.Second),
		client.WithMaxAttempts(5),
		client.WithMeta("tenant", "acme"),
	)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if j == nil {
		t.Fatal("Enqueue returned a nil job")
	}
	if j.ID.IsNil() {
		t.Error("enqueued job has no ID")
	}
	if j.Queue != "email" {
		t.Errorf("job queue = %q, want %q", j.Queue, "email")
	}

	reqs := co.Enqueues()
	if len(reqs) != 1 {
		t.Fatalf("coordinator saw %d enqueues, want 1", len(reqs))
	}
	req := reqs[0]
	if req.Type != "email.send" || req.Queue != "email" || req.Priority != 5 {
		t.Errorf("request = %+v, want type/queue/priority preserved", req)
	}
	if req.TimeoutMS != 30_000 {
		t.Errorf("timeout_ms = %d, want 30000", req.TimeoutMS)
	}
	if req.MaxAttempts != 5 {
		t.Errorf("max_attempts = %d, want 5", req.MaxAttempts)
	}
	if req.Meta["tenant"] != "acme" {
		t.Errorf("meta = %v, want tenant=acme", req.Meta)
	}

	var payload map[string]string
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["to"] != "user@example.com" {
		t.Errorf("payload = %v", payload)
	}
}

func TestEnqueueDefaultQueue(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co, client.WithDefaultQueue("bulk"))

	if _, err := c.Enqueue(context.Background(), "export.run", nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got := co.Enqueues()[0].Queue; got != "bulk" {
		t.Errorf("queue = %q, want the client default %q", got, "bulk")
	}
}

func TestEnqueueEmptyTypeFails(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co)

	if _, err := c.Enqueue(context.Background(), "", nil); err == nil {
		t.Fatal("Enqueue with empty type succeeded, want error")
	}
	if got := len(co.Enqueues()); got != 0 {
		t.Errorf("coordinator saw %d enqueues, want 0", got)
	}
}

func TestEnqueueInterceptorMutatesRequest(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co)

	c.Intercept("tenant-tag", func(ctx context.Context, req *wire.JobRequest, next middleware.EnqueueNext) (*job.Job, error) {
		if req.Meta == nil {
			req.Meta = make(map[string]string)
		}
		req.Meta["tenant"] = "acme"
		return next(ctx, req)
	})

	if _, err := c.Enqueue(context.Background(), "email.send", nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got := co.Enqueues()[0].Meta["tenant"]; got != "acme" {
		t.Errorf("meta tenant = %q, want %q", got, "acme")
	}
}

func TestEnqueueInterceptorDropsJob(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co)

	var afterRan atomic.Bool
	c.Intercept("drop-internal", func(ctx context.Context, req *wire.JobRequest, next middleware.EnqueueNext) (*job.Job, error) {
		if req.Meta["internal"] == "true" {
			return nil, nil
		}
		return next(ctx, req)
	})
	c.Intercept("after", func(ctx context.Context, req *wire.JobRequest, next middleware.EnqueueNext) (*job.Job, error) {
		afterRan.Store(true)
		return next(ctx, req)
	})

	j, err := c.Enqueue(context.Background(), "audit.log", nil, client.WithMeta("internal", "true"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if j != nil {
		t.Errorf("dropped job returned %+v, want nil", j)
	}
	if afterRan.Load() {
		t.Error("interceptor after the drop still ran")
	}
	if got := len(co.Enqueues()); got != 0 {
		t.Errorf("coordinator saw %d enqueues, want 0", got)
	}

	// A non-matching job still goes through.
	if _, err := c.Enqueue(context.Background(), "audit.log", nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !afterRan.Load() {
		t.Error("interceptor after the drop never ran for a surviving job")
	}
	if got := len(co.Enqueues()); got != 1 {
		t.Errorf("coordinator saw %d enqueues, want 1", got)
	}
}

func TestEnqueueInterceptorsRunInOrder(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		c.Intercept(name, func(ctx context.Context, req *wire.JobRequest, next middleware.EnqueueNext) (*job.Job, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return next(ctx, req)
		})
	}

	if _, err := c.Enqueue(context.Background(), "noop.task", nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestEnqueueBatch(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co, client.WithBatchConcurrency(2))

	items := make([]client.BatchItem, 10)
	for i := range items {
		items[i] = client.BatchItem{
			Type:    "email.send",
			Payload: map[string]int{"n": i},
		}
	}

	jobs, err := c.EnqueueBatch(context.Background(), items)
	if err != nil {
		t.Fatalf("EnqueueBatch: %v", err)
	}
	if len(jobs) != 10 {
		t.Fatalf("got %d results, want 10", len(jobs))
	}
	for i, j := range jobs {
		if j == nil {
			t.Fatalf("result %d is nil", i)
		}
	}
	if got := co.Pending(); got != 10 {
		t.Errorf("coordinator backlog = %d, want 10", got)
	}
}

func TestEnqueueBatchDroppedItemsAreNil(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co)

	c.Intercept("drop-odd", func(ctx context.Context, req *wire.JobRequest, next middleware.EnqueueNext) (*job.Job, error) {
		if req.Meta["odd"] == "true" {
			return nil, nil
		}
		return next(ctx, req)
	})

	items := make([]client.BatchItem, 4)
	for i := range items {
		items[i] = client.BatchItem{
			Type: "email.send",
			Opts: []client.EnqueueOption{
				client.WithMeta("odd", fmt.Sprintf("%t", i%2 == 1)),
			},
		}
	}

	jobs, err := c.EnqueueBatch(context.Background(), items)
	if err != nil {
		t.Fatalf("EnqueueBatch: %v", err)
	}
	for i, j := range jobs {
		wantDropped := i%2 == 1
		if wantDropped && j != nil {
			t.Errorf("result %d = %+v, want nil (dropped)", i, j)
		}
		if !wantDropped && j == nil {
			t.Errorf("result %d is nil, want a job", i)
		}
	}
}

func TestEnqueueBatchPropagatesErrors(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co)

	scripted := wire.NewError(wire.CodeRateLimited, "queue full", true)
	co.FailWith(wire.MethodEnqueue, scripted)

	_, err := c.EnqueueBatch(context.Background(), []client.BatchItem{
		{Type: "email.send"},
		{Type: "email.send"},
	})
	if !errors.Is(err, scripted) {
		t.Fatalf("EnqueueBatch error = %v, want the scripted rate-limit error", err)
	}
}

func TestEnsureQueue(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co)

	if err := c.EnsureQueue(context.Background(), wire.Queue{Name: "email"}); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	if _, ok := co.Queue("email"); !ok {
		t.Error("queue was not registered with the coordinator")
	}

	if err := c.EnsureQueue(context.Background(), wire.Queue{}); err == nil {
		t.Error("EnsureQueue with empty name succeeded, want error")
	}
}

func TestUpsertScheduleValidatesCronLocally(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co)

	_, err := c.UpsertSchedule(context.Background(), &wire.ScheduleRequest{
		Name: "daily-report",
		Cron: "not-a-cron",
		Job:  &wire.JobRequest{Type: "report.generate"},
	})
	if err == nil {
		t.Fatal("UpsertSchedule accepted an invalid cron expression")
	}
	if got := co.Calls(wire.MethodScheduleUpsert); got != 0 {
		t.Errorf("coordinator saw %d upserts, want 0 (validation is local)", got)
	}

	sched, err := c.UpsertSchedule(context.Background(), &wire.ScheduleRequest{
		Name: "daily-report",
		Cron: "0 2 * * *",
		Job:  &wire.JobRequest{Type: "report.generate"},
	})
	if err != nil {
		t.Fatalf("UpsertSchedule: %v", err)
	}
	if sched.Name != "daily-report" || sched.ID.IsNil() {
		t.Errorf("schedule = %+v, want name and ID set", sched)
	}
	if _, ok := co.Schedule("daily-report"); !ok {
		t.Error("schedule was not registered with the coordinator")
	}

	// Descriptor expressions are accepted too.
	if _, err := c.UpsertSchedule(context.Background(), &wire.ScheduleRequest{
		Name: "cleanup",
		Cron: "@every 30s",
		Job:  &wire.JobRequest{Type: "cleanup.run"},
	}); err != nil {
		t.Fatalf("UpsertSchedule with descriptor: %v", err)
	}
}

func TestUpsertScheduleRequiresJob(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co)

	if _, err := c.UpsertSchedule(context.Background(), &wire.ScheduleRequest{
		Name: "empty",
		Cron: "* * * * *",
	}); err == nil {
		t.Fatal("UpsertSchedule without a job succeeded, want error")
	}
}

func TestDeleteSchedule(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co)

	if _, err := c.UpsertSchedule(context.Background(), &wire.ScheduleRequest{
		Name: "daily-report",
		Cron: "0 2 * * *",
		Job:  &wire.JobRequest{Type: "report.generate"},
	}); err != nil {
		t.Fatalf("UpsertSchedule: %v", err)
	}

	if err := c.DeleteSchedule(context.Background(), "daily-report"); err != nil {
		t.Fatalf("DeleteSchedule: %v", err)
	}
	if _, ok := co.Schedule("daily-report"); ok {
		t.Error("schedule still registered after delete")
	}

	// Deleting an unknown schedule is a no-op.
	if err := c.DeleteSchedule(context.Background(), "never-existed"); err != nil {
		t.Errorf("DeleteSchedule on unknown name = %v, want nil", err)
	}
}

// enqueueHook records JobEnqueued notifications.
type enqueueHook struct {
	count atomic.Int32
}

func (h *enqueueHook) Name() string { return "enqueue-recorder" }

func (h *enqueueHook) OnJobEnqueued(_ context.Context, _ *job.Job) error {
	h.count.Add(1)
	return nil
}

func TestEnqueueEmitsHook(t *testing.T) {
	co := ojstest.New()
	h := &enqueueHook{}
	c := newTestClient(co, client.WithHooks(h))

	if _, err := c.Enqueue(context.Background(), "email.send", nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got := h.count.Load(); got != 1 {
		t.Errorf("hook notified %d times, want 1", got)
	}

	// A dropped job emits nothing.
	c.Intercept("drop-all", func(ctx context.Context, req *wire.JobRequest, next middleware.EnqueueNext) (*job.Job, error) {
		return nil, nil
	})
	if _, err := c.Enqueue(context.Background(), "email.send", nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got := h.count.Load(); got != 1 {
		t.Errorf("hook notified %d times after drop, want still 1", got)
	}
}

func TestClientWorkerRoundTrip(t *testing.T) {
	co := ojstest.New()
	c := newTestClient(co)

	reg := job.NewRegistry()
	job.MustRegister(reg, job.NewDefinition("echo.test",
		func(ctx context.Context, in map[string]string) (any, error) { return in, nil },
	))

	j, err := c.Enqueue(context.Background(), "echo.test", map[string]string{"echo": "x"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	w := worker.New(co, reg,
		worker.WithLogger(testLogger()),
		worker.WithPollInterval(10*time.Millisecond),
	)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for len(co.Acks()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("enqueued job was never executed and acknowledged")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ack := co.Acks()[0]
	if ack.JobID != j.ID {
		t.Errorf("acked job = %s, want %s", ack.JobID, j.ID)
	}
	var result map[string]string
	if err := json.Unmarshal(ack.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result["echo"] != "x" {
		t.Errorf("result = %v, want echo=x", result)
	}
}

package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	audithook "github.com/openjobspec/ojs-go/audit_hook"
	"github.com/openjobspec/ojs-go/id"
	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/wire"
)

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*audithook.Event
	err    error
}

func (m *mockRecorder) Record(_ context.Context, evt *audithook.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *audithook.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func newTestJob() *job.Job {
	return &job.Job{
		ID:          id.NewJobID(),
		Type:        "email.send",
		Queue:       "default",
		Attempt:     1,
		MaxAttempts: 3,
	}
}

func TestHookName(t *testing.T) {
	h := audithook.New(&mockRecorder{})
	if h.Name() != "audit" {
		t.Errorf("Name() = %q, want %q", h.Name(), "audit")
	}
}

func TestJobCompletedEvent(t *testing.T) {
	rec := &mockRecorder{}
	h := audithook.New(rec)
	j := newTestJob()

	if err := h.OnJobCompleted(context.Background(), j, 120*time.Millisecond); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != audithook.ActionJobCompleted {
		t.Errorf("action = %q, want %q", evt.Action, audithook.ActionJobCompleted)
	}
	if evt.Resource != audithook.ResourceJob || evt.Category != audithook.CategoryJob {
		t.Errorf("resource/category = %q/%q", evt.Resource, evt.Category)
	}
	if evt.ResourceID != j.ID.String() {
		t.Errorf("resource_id = %q, want the job ID", evt.ResourceID)
	}
	if evt.Severity != audithook.SeverityInfo || evt.Outcome != audithook.OutcomeSuccess {
		t.Errorf("severity/outcome = %q/%q", evt.Severity, evt.Outcome)
	}
	if evt.Metadata["elapsed_ms"] != int64(120) {
		t.Errorf("elapsed_ms = %v, want 120", evt.Metadata["elapsed_ms"])
	}
	if evt.Metadata["job_type"] != "email.send" {
		t.Errorf("job_type = %v", evt.Metadata["job_type"])
	}
}

func TestJobFailedSeverityTracksRetryability(t *testing.T) {
	rec := &mockRecorder{}
	h := audithook.New(rec)
	j := newTestJob()

	retryable := wire.NewError(wire.CodeHandlerError, "boom", true)
	if err := h.OnJobFailed(context.Background(), j, retryable); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}
	if evt := rec.last(); evt.Severity != audithook.SeverityWarning {
		t.Errorf("retryable failure severity = %q, want warning", evt.Severity)
	}

	terminal := wire.NoHandler(j.Type)
	if err := h.OnJobFailed(context.Background(), j, terminal); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}
	evt := rec.last()
	if evt.Severity != audithook.SeverityCritical {
		t.Errorf("terminal failure severity = %q, want critical", evt.Severity)
	}
	if evt.Outcome != audithook.OutcomeFailure {
		t.Errorf("outcome = %q, want failure", evt.Outcome)
	}
	if evt.Reason == "" {
		t.Error("reason is empty, want the error message")
	}
	if evt.Metadata["code"] != string(wire.CodeNoHandler) {
		t.Errorf("code = %v, want no_handler", evt.Metadata["code"])
	}
}

func TestWorkerLifecycleEvents(t *testing.T) {
	rec := &mockRecorder{}
	h := audithook.New(rec)
	wid := id.NewWorkerID()

	if err := h.OnWorkerStarted(context.Background(), wid); err != nil {
		t.Fatalf("OnWorkerStarted: %v", err)
	}
	if err := h.OnWorkerStateChanged(context.Background(), wid, "running", "quiet"); err != nil {
		t.Fatalf("OnWorkerStateChanged: %v", err)
	}
	if err := h.OnWorkerStopped(context.Background(), wid, 42, time.Minute); err != nil {
		t.Fatalf("OnWorkerStopped: %v", err)
	}

	if got := rec.count(); got != 3 {
		t.Fatalf("recorded %d events, want 3", got)
	}
	evt := rec.last()
	if evt.Action != audithook.ActionWorkerStopped {
		t.Errorf("action = %q", evt.Action)
	}
	if evt.Metadata["completed_jobs"] != int64(42) {
		t.Errorf("completed_jobs = %v, want 42", evt.Metadata["completed_jobs"])
	}
}

func TestWithActionsFiltersEvents(t *testing.T) {
	rec := &mockRecorder{}
	h := audithook.New(rec, audithook.WithActions(audithook.ActionJobFailed))
	j := newTestJob()

	if err := h.OnJobCompleted(context.Background(), j, time.Millisecond); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	if got := rec.count(); got != 0 {
		t.Fatalf("filtered action recorded %d events, want 0", got)
	}

	if err := h.OnJobFailed(context.Background(), j, wire.NewError(wire.CodeHandlerError, "boom", true)); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}
	if got := rec.count(); got != 1 {
		t.Fatalf("enabled action recorded %d events, want 1", got)
	}
}

func TestRecorderErrorIsReturned(t *testing.T) {
	backendDown := errors.New("audit backend unavailable")
	rec := &mockRecorder{err: backendDown}
	h := audithook.New(rec)

	err := h.OnJobStarted(context.Background(), newTestJob())
	if !errors.Is(err, backendDown) {
		t.Fatalf("OnJobStarted = %v, want the backend error", err)
	}
}

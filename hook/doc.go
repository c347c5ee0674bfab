// Package hook defines lifecycle hooks for workers and jobs.
//
// Hooks are notified of lifecycle events and can react to them —
// recording metrics, emitting webhooks, writing audit logs, etc.
// Each lifecycle event is a separate interface so hooks opt in only
// to the events they care about.
//
// # Implementing a Hook
//
//	type AuditHook struct{}
//
//	func (h *AuditHook) Name() string { return "audit" }
//
//	// Opt in to specific events by implementing their interfaces.
//	func (h *AuditHook) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s completed in %s", j.ID, elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobEnqueued] — job was accepted by the coordinator
//   - [JobStarted] — the worker began executing the job
//   - [JobCompleted] — job finished successfully
//   - [JobFailed] — job attempt failed and was reported
//
// # Worker Lifecycle Hooks
//
//   - [WorkerStarted] — worker entered the running state
//   - [WorkerStopped] — worker fully terminated
//   - [WorkerStateChanged] — any lifecycle state transition, including
//     coordinator directives like quiet or terminate
//
// The [Registry] fans out each event to all registered hooks that
// implement the corresponding interface. Hook errors are logged and
// never propagated.
package hook

// Package audithook bridges worker and job lifecycle events to an
// immutable audit trail backend.
//
// Every lifecycle hook emits a structured audit event through the
// [Recorder] interface. The hook assigns severity levels (info for
// normal operations, warning for retryable failures, critical for
// terminal ones) and rich metadata (job type, queue, attempt, elapsed
// time, error details).
//
// # Usage
//
//	trail := audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.Event) error {
//	    return auditLog.Write(ctx, evt.Action, evt.ResourceID, evt.Metadata)
//	}))
//
//	w := worker.New(t, reg, worker.WithHooks(trail))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionWorkerStopped,
//	    ),
//	)
package audithook

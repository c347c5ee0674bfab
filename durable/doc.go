// Package durable implements the deterministic-replay execution context
// for OJS jobs registered as durable.
//
// A durable handler can be safely re-attempted after a crash without
// re-running non-deterministic steps. During the first attempt every
// wall-clock read, random draw, and named side effect is appended to a
// replay log. Calling [Context.Checkpoint] persists that log to the
// coordinator; when a later attempt constructs a new Context, the log is
// fetched back and consumed in exactly the order it was recorded, so the
// handler observes identical values instead of re-executing the steps.
//
// # Recording and Replaying
//
//	func importUsers(ctx context.Context, d *durable.Context, in ImportInput) (any, error) {
//	    batch, err := durable.Call(ctx, d, "fetch-batch", func(ctx context.Context) ([]User, error) {
//	        return crm.FetchUsers(ctx, in.Cursor)
//	    })
//	    if err != nil {
//	        return nil, err
//	    }
//	    if err := d.Checkpoint(ctx, 1, in.Cursor); err != nil {
//	        return nil, err
//	    }
//	    // ...
//	}
//
// On success the executor discards the checkpoint via [Context.Complete];
// a failed attempt leaves it in place for the retry to resume from.
//
// # Key Types
//
//   - [Context] — per-invocation replay/record state machine
//   - [Entry] — one recorded non-deterministic outcome
//   - [Snapshot] — the persisted checkpoint: handler state plus replay log
//   - [CheckpointStore] — the coordinator-backed persistence seam
package durable

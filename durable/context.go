package durable

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openjobspec/ojs-go/id"
)

// Context is the execution context passed to durable job handlers. It
// records non-deterministic outcomes (wall-clock reads, random draws,
// named side effects) on the first attempt and replays them verbatim on
// subsequent attempts that resume from a checkpoint.
//
// A Context is owned by a single handler invocation and is not safe for
// concurrent use.
type Context struct {
	store  CheckpointStore
	logger *slog.Logger

	jobID   id.JobID
	attempt int

	log       []Entry
	cursor    int
	replaying bool

	// restored carries the previous attempt's handler state, when any.
	restoredState json.RawMessage
	stepIndex     int
}

// New constructs a Context for one handler invocation, fetching any
// existing checkpoint for the job. If a checkpoint exists and carries a
// non-empty replay log, the Context starts in replay mode with its read
// cursor at position zero; otherwise it starts in record mode with an
// empty log.
//
// A load failure is returned rather than swallowed: starting a durable
// handler in record mode while a checkpoint actually exists would re-run
// side effects that already happened.
func New(ctx context.Context, store CheckpointStore, jobID id.JobID, attempt int, logger *slog.Logger) (*Context, error) {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Context{
		store:   store,
		logger:  logger,
		jobID:   jobID,
		attempt: attempt,
	}

	snap, err := store.Load(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("durable: load checkpoint for %s: %w", jobID, err)
	}
	if snap != nil {
		d.restoredState = snap.State
		d.stepIndex = snap.StepIndex
		if len(snap.Metadata.ReplayLog) > 0 {
			d.log = snap.Metadata.ReplayLog
			d.replaying = true
			logger.Debug("resuming durable job from checkpoint",
				slog.String("job_id", jobID.String()),
				slog.Int("attempt", attempt),
				slog.Int("logged_entries", len(d.log)),
				slog.Int("step_index", snap.StepIndex),
			)
		}
	}

	return d, nil
}

// JobID returns the job this context belongs to.
func (d *Context) JobID() id.JobID { return d.jobID }

// Attempt returns the current attempt number.
func (d *Context) Attempt() int { return d.attempt }

// Replaying reports whether the context is still consuming recorded
// entries. It turns false once the cursor reaches the log's end or the
// live call sequence diverges from the log.
func (d *Context) Replaying() bool { return d.replaying }

// StepIndex returns the step index saved by the most recent checkpoint
// of a previous attempt, or zero when none exists.
func (d *Context) StepIndex() int { return d.stepIndex }

// RestoredState decodes the handler state saved by a previous attempt's
// checkpoint into v. It reports false when no state was saved.
func (d *Context) RestoredState(v any) (bool, error) {
	if len(d.restoredState) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(d.restoredState, v); err != nil {
		return false, fmt.Errorf("durable: decode restored state for %s: %w", d.jobID, err)
	}
	return true, nil
}

// Now returns the current wall-clock time, recording it on first
// execution and replaying the recorded instant on resume.
func (d *Context) Now() time.Time {
	if raw, ok := d.replayNext(KindTime, ""); ok {
		var t time.Time
		if err := json.Unmarshal(raw, &t); err == nil {
			return t
		}
		d.logger.Warn("durable replay entry did not decode as time, recording fresh value",
			slog.String("job_id", d.jobID.String()),
		)
	}

	t := time.Now().UTC()
	d.append(KindTime, "", mustMarshal(t))
	return t
}

// Random returns n cryptographically random bytes, recording them on
// first execution and replaying the recorded bytes on resume.
func (d *Context) Random(n int) []byte {
	if raw, ok := d.replayNext(KindRandom, ""); ok {
		var b []byte
		if err := json.Unmarshal(raw, &b); err == nil {
			return b
		}
		d.logger.Warn("durable replay entry did not decode as random bytes, recording fresh value",
			slog.String("job_id", d.jobID.String()),
		)
	}

	b := make([]byte, n)
	// crypto/rand.Read cannot fail on supported platforms.
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("durable: read random bytes: %v", err))
	}
	d.append(KindRandom, "", mustMarshal(b))
	return b
}

// SideEffect runs a named operation exactly once across attempts. On
// replay with a matching logged entry the recorded result is returned
// and op is not invoked. Errors from op are not recorded; the attempt
// fails and a retry re-runs the operation.
func (d *Context) SideEffect(ctx context.Context, key string, op func(ctx context.Context) (any, error)) (json.RawMessage, error) {
	if raw, ok := d.replayNext(KindCall, key); ok {
		return raw, nil
	}

	v, err := op(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("durable: marshal side effect %q: %w", key, err)
	}

	d.append(KindCall, key, raw)
	return raw, nil
}

// Call executes a named side effect that returns a typed value,
// recording the result for replay exactly as [Context.SideEffect] does.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func Call[T any](ctx context.Context, d *Context, key string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, err := d.SideEffect(ctx, key, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("durable: decode side effect %q: %w", key, err)
	}
	return out, nil
}

// Checkpoint persists the full replay log together with the given
// handler state, step index, and the current attempt number. A retried
// attempt resumes from the most recent checkpoint.
func (d *Context) Checkpoint(ctx context.Context, stepIndex int, state any) error {
	var raw json.RawMessage
	if state != nil {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("durable: marshal checkpoint state for %s: %w", d.jobID, err)
		}
		raw = data
	}

	snap := &Snapshot{
		State:     raw,
		StepIndex: stepIndex,
		Metadata: Metadata{
			ReplayLog: append([]Entry(nil), d.log...),
			Attempt:   d.attempt,
		},
	}

	if err := d.store.Save(ctx, d.jobID, snap); err != nil {
		return fmt.Errorf("durable: save checkpoint for %s: %w", d.jobID, err)
	}
	return nil
}

// Complete discards the checkpoint for this job. The executor calls it
// after a durable handler succeeds so the next run starts fresh.
func (d *Context) Complete(ctx context.Context) error {
	if err := d.store.Delete(ctx, d.jobID); err != nil {
		return fmt.Errorf("durable: delete checkpoint for %s: %w", d.jobID, err)
	}
	return nil
}

// ── Replay machinery ────────────────────────────────

// replayNext consumes the entry at the cursor if it matches the
// requested kind (and key, for call entries that recorded one). On a
// mismatch the live call sequence has diverged from the recorded log:
// the stale suffix is dropped and the context falls back to record mode
// from that point.
func (d *Context) replayNext(kind Kind, key string) (json.RawMessage, bool) {
	if !d.replaying {
		return nil, false
	}

	e := d.log[d.cursor]
	if e.Kind != kind || (e.Kind == KindCall && e.Key != "" && e.Key != key) {
		d.logger.Warn("durable replay diverged from recorded log, falling back to record mode",
			slog.String("job_id", d.jobID.String()),
			slog.Int("cursor", d.cursor),
			slog.String("logged_kind", string(e.Kind)),
			slog.String("logged_key", e.Key),
			slog.String("requested_kind", string(kind)),
			slog.String("requested_key", key),
		)
		d.log = d.log[:d.cursor:d.cursor]
		d.replaying = false
		return nil, false
	}

	d.cursor++
	if d.cursor >= len(d.log) {
		d.replaying = false
	}
	return e.Result, true
}

func (d *Context) append(kind Kind, key string, result json.RawMessage) {
	d.log = append(d.log, Entry{
		Seq:    len(d.log),
		Kind:   kind,
		Key:    key,
		Result: result,
	})
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("durable: marshal %T: %v", v, err))
	}
	return data
}

package job

import (
	"context"
	"time"

	"github.com/openjobspec/ojs-go/durable"
	"github.com/openjobspec/ojs-go/id"
)

// Execution carries everything the pipeline knows about one handler
// invocation: the claimed envelope, the worker executing it, a scratch
// store interceptors can pass values through, and, for durable job
// types, the replay context.
type Execution struct {
	// Job is the claimed envelope.
	Job *Job

	// WorkerID identifies the worker executing this attempt.
	WorkerID id.WorkerID

	// StartedAt is when the pipeline began this attempt.
	StartedAt time.Time

	// Durable is the deterministic-replay context. It is non-nil only
	// for job types registered via RegisterDurable.
	Durable *durable.Context

	// values is the mutable scratch store scoped to this execution.
	// Middleware writes here to hand data down the chain (an auth
	// principal, a deadline hint) without widening signatures. The
	// store lives exactly as long as the execution; it is not
	// serialized or reported anywhere.
	values map[string]any
}

// NewExecution builds an execution for one claimed envelope.
func NewExecution(j *Job, workerID id.WorkerID) *Execution {
	return &Execution{
		Job:       j,
		WorkerID:  workerID,
		StartedAt: time.Now(),
	}
}

// Set stores a scratch value on the execution.
func (ex *Execution) Set(key string, value any) {
	if ex.values == nil {
		ex.values = make(map[string]any)
	}
	ex.values[key] = value
}

// Get returns the scratch value for key.
func (ex *Execution) Get(key string) (any, bool) {
	v, ok := ex.values[key]
	return v, ok
}

// Values returns a copy of the scratch store.
func (ex *Execution) Values() map[string]any {
	out := make(map[string]any, len(ex.values))
	for k, v := range ex.values {
		out[k] = v
	}
	return out
}

type ctxKey struct{}

// NewContext returns a context carrying the execution. The pipeline
// installs it before the middleware chain runs so handlers and
// interceptors can recover it with FromContext.
func NewContext(ctx context.Context, ex *Execution) context.Context {
	return context.WithValue(ctx, ctxKey{}, ex)
}

// FromContext recovers the execution installed by the pipeline.
func FromContext(ctx context.Context) (*Execution, bool) {
	ex, ok := ctx.Value(ctxKey{}).(*Execution)
	return ex, ok
}

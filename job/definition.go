package job

import (
	"context"

	"github.com/openjobspec/ojs-go/durable"
)

// Definition is a typed job definition with a handler function.
// T is the payload type (must be JSON-serializable). The handler's
// first return value becomes the job's result payload; return nil for
// jobs without a meaningful result.
type Definition[T any] struct {
	// Type is the dot-namespaced identifier for this job type.
	Type string

	// Handler is the function that processes the job payload.
	Handler func(ctx context.Context, payload T) (any, error)

	// Opts configures queue, priority, attempts, and timeout defaults.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](jobType string, handler func(ctx context.Context, payload T) (any, error), opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Type:    jobType,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}

// DurableDefinition is a typed definition whose handler executes under
// a deterministic-replay context. Failed attempts resume from the last
// checkpoint instead of re-running recorded side effects.
type DurableDefinition[T any] struct {
	// Type is the dot-namespaced identifier for this job type.
	Type string

	// Handler processes the payload with access to the replay context.
	Handler func(ctx context.Context, d *durable.Context, payload T) (any, error)

	// Opts configures queue, priority, attempts, and timeout defaults.
	Opts Options
}

// NewDurableDefinition creates a typed durable job definition.
func NewDurableDefinition[T any](jobType string, handler func(ctx context.Context, d *durable.Context, payload T) (any, error), opts ...Option) *DurableDefinition[T] {
	def := &DurableDefinition[T]{
		Type:    jobType,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}

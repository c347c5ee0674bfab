package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	ojs "github.com/openjobspec/ojs-go"
)

// HandlerFunc is a type-erased job handler operating on an execution.
// The typed Definition[T] is converted to a HandlerFunc at registration
// time by closing over JSON unmarshal + the typed handler.
type HandlerFunc func(ctx context.Context, ex *Execution) (any, error)

type entry struct {
	fn      HandlerFunc
	durable bool
	opts    Options
}

// Registry maps dot-namespaced job types to type-erased handler
// functions. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register registers a typed job definition. The generic handler is
// wrapped in a closure that JSON-unmarshals the payload into T before
// calling the typed handler. Registering an empty or already-registered
// type is an error.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func Register[T any](r *Registry, def *Definition[T]) error {
	fn := func(ctx context.Context, ex *Execution) (any, error) {
		var payload T
		if len(ex.Job.Payload) > 0 {
			if err := json.Unmarshal(ex.Job.Payload, &payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload for job type %q: %w", def.Type, err)
			}
		}
		return def.Handler(ctx, payload)
	}

	return r.add(def.Type, entry{fn: fn, opts: def.Opts})
}

// MustRegister is like Register but panics on error. Use for static
// registration at startup.
func MustRegister[T any](r *Registry, def *Definition[T]) {
	if err := Register(r, def); err != nil {
		panic(err)
	}
}

// RegisterDurable registers a typed durable job definition. The worker
// constructs a replay context for each attempt and passes it through
// the execution to the typed handler.
func RegisterDurable[T any](r *Registry, def *DurableDefinition[T]) error {
	fn := func(ctx context.Context, ex *Execution) (any, error) {
		if ex.Durable == nil {
			return nil, fmt.Errorf("durable handler %q invoked without a replay context", def.Type)
		}

		var payload T
		if len(ex.Job.Payload) > 0 {
			if err := json.Unmarshal(ex.Job.Payload, &payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload for job type %q: %w", def.Type, err)
			}
		}
		return def.Handler(ctx, ex.Durable, payload)
	}

	return r.add(def.Type, entry{fn: fn, durable: true, opts: def.Opts})
}

// MustRegisterDurable is like RegisterDurable but panics on error.
func MustRegisterDurable[T any](r *Registry, def *DurableDefinition[T]) {
	if err := RegisterDurable(r, def); err != nil {
		panic(err)
	}
}

func (r *Registry) add(jobType string, e entry) error {
	if jobType == "" {
		return fmt.Errorf("job: register: empty job type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[jobType]; exists {
		return fmt.Errorf("job: register %q: %w", jobType, ojs.ErrDuplicateKind)
	}
	r.entries[jobType] = e
	return nil
}

// Get returns the handler for the given job type.
// Returns false if no handler is registered.
func (r *Registry) Get(jobType string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[jobType]
	return e.fn, ok
}

// Durable reports whether the given job type was registered as durable.
func (r *Registry) Durable(jobType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[jobType].durable
}

// Defaults returns the per-type options recorded at registration.
// Returns false if no handler is registered.
func (r *Registry) Defaults(jobType string) (Options, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[jobType]
	return e.opts, ok
}

// Types returns all registered job types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	return types
}

package ojs

import "time"

// Config holds worker configuration. It is assembled once at worker
// construction and never mutated afterwards.
type Config struct {
	// Queues is the list of queues to claim from, in priority order.
	Queues []string

	// Concurrency is the maximum number of jobs executed concurrently.
	Concurrency int

	// PollInterval is how long the claim loop waits when no work or no
	// capacity is available.
	PollInterval time.Duration

	// HeartbeatInterval is how often the worker reports liveness to the
	// coordinator.
	HeartbeatInterval time.Duration

	// ShutdownGrace is the maximum time to wait for in-flight jobs to
	// finish during shutdown before their cancellation tokens fire.
	ShutdownGrace time.Duration

	// VisibilityTimeout is how long a claimed job stays reserved for
	// this worker before the coordinator may re-deliver it.
	VisibilityTimeout time.Duration

	// Labels are opaque key/value pairs reported with each heartbeat.
	Labels map[string]string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Queues:            []string{"default"},
		Concurrency:       10,
		PollInterval:      1 * time.Second,
		HeartbeatInterval: 15 * time.Second,
		ShutdownGrace:     30 * time.Second,
		VisibilityTimeout: 30 * time.Second,
	}
}

package job

import "time"

// Options configures per-type defaults applied when jobs of this type
// are enqueued, plus the execution timeout the worker falls back to
// when an envelope carries none.
type Options struct {
	// Queue is the queue jobs of this type are enqueued to.
	Queue string

	// Priority determines claim ordering. Higher values are claimed first.
	Priority int

	// MaxAttempts is the total attempt budget, including the first run.
	MaxAttempts int

	// Timeout is the maximum duration one attempt may run before its
	// cancellation token fires. Zero means unlimited.
	Timeout time.Duration
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Queue:       "default",
		Priority:    0,
		MaxAttempts: 3,
		Timeout:     5 * time.Minute,
	}
}

// Option is a functional option for configuring a job definition.
type Option func(*Options)

// WithQueue sets the queue for jobs of this type.
func WithQueue(q string) Option {
	return func(o *Options) {
		o.Queue = q
	}
}

// WithPriority sets the claim priority. Higher values are claimed first.
func WithPriority(p int) Option {
	return func(o *Options) {
		o.Priority = p
	}
}

// WithMaxAttempts sets the total attempt budget, including the first run.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		o.MaxAttempts = n
	}
}

// WithTimeout sets the maximum execution duration per attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

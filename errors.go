package ojs

import "errors"

var (
	// Lifecycle errors.
	ErrAlreadyActive = errors.New("ojs: worker already active")
	ErrNoTransport   = errors.New("ojs: no transport configured")

	// Cancellation causes. These are installed as the cause of an
	// execution's context so handlers and the pipeline can tell a
	// per-job timeout apart from a worker-wide shutdown.
	ErrExecutionTimeout = errors.New("ojs: job execution timed out")
	ErrWorkerShutdown   = errors.New("ojs: worker shutting down")

	// Registry errors.
	ErrNoHandler     = errors.New("ojs: no handler registered for job type")
	ErrDuplicateKind = errors.New("ojs: job type already registered")
)

// Package transport connects workers and clients to a coordinator.
//
// Two bindings implement the same [Transport] interface: [HTTP] issues
// one request per operation against the coordinator's REST surface, and
// [Socket] multiplexes operations as correlated frames over a single
// WebSocket connection with automatic reconnection.
//
// [Coordinator] wraps a Transport with typed operations (claim, ack,
// fail, heartbeat, enqueue, checkpoints, queues, schedules) so the rest
// of the SDK never touches raw frames or paths.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Request is one logical operation bound for the coordinator.
type Request struct {
	// Method is the operation name, one of the wire.Method constants.
	Method string

	// Key optionally identifies the addressed resource (a job ID for
	// checkpoint calls, a queue or schedule name for admin calls). The
	// HTTP binding places it in the URL path; the socket binding relies
	// on the same identifier inside Body.
	Key string

	// Body is the request payload. It must be JSON-marshalable.
	Body any

	// Timeout bounds this one operation. Zero falls back to the
	// binding's default; the caller's context still applies either way.
	Timeout time.Duration
}

// Transport moves one operation to the coordinator and decodes the
// response into result (which may be nil when no response body is
// expected).
//
// Failures split into two classes: a *wire.Error means the coordinator
// received and rejected the operation, while a *ConnError means the
// connection itself failed and the operation may never have arrived.
type Transport interface {
	Do(ctx context.Context, req Request, result any) error
	Close() error
}

// ConnError wraps a connection-level failure: dial errors, timeouts,
// dropped sockets. An operation failing with ConnError was not
// necessarily received by the coordinator.
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("ojs: transport %s: %v", e.Op, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// IsConnError reports whether err is a connection-level transport
// failure.
func IsConnError(err error) bool {
	var ce *ConnError
	return errors.As(err, &ce)
}

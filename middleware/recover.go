package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/openjobspec/ojs-go/job"
)

// PanicError is the error produced when a recovered panic is converted
// to a handler failure. It carries the panic value and the stack trace
// captured at the recovery point.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to [PanicError] and logged with a stack
// trace.
func Recover(logger *slog.Logger) Func {
	return func(ctx context.Context, ex *job.Execution, next Next) (result any, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger.Error("job handler panicked",
					slog.String("job_type", ex.Job.Type),
					slog.String("job_id", ex.Job.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", string(stack)),
				)
				result = nil
				retErr = &PanicError{Value: r, Stack: stack}
			}
		}()
		return next(ctx)
	}
}

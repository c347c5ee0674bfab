// Package middleware provides composable middleware for job execution
// and enqueue-side interception.
//
// Execution middleware composes in the onion model: entries run in
// insertion order on the way in and reverse order on the way out. Each
// entry receives a continuation and may run code on both sides of it,
// or skip it entirely to short-circuit the chain.
//
//	chain := middleware.NewChain()
//	chain.Use("recover", middleware.Recover(logger))
//	chain.Use("logging", middleware.Logging(logger))
//
// Entries are named so chains can be edited structurally:
//
//	chain.InsertBefore("logging", "tracing", middleware.Tracing())
//	chain.Remove("recover")
//
// # Built-in Middleware
//
//   - [Logging] — logs job type, queue, duration, and outcome at each execution
//   - [Recover] — catches panics and converts them to [PanicError]
//   - [Tracing] — wraps execution in an OpenTelemetry span
//   - [Metrics] — records per-job duration and outcome counters
//
// # Writing Custom Middleware
//
//	func Audit() middleware.Func {
//	    return func(ctx context.Context, ex *job.Execution, next middleware.Next) (any, error) {
//	        // pre-processing
//	        result, err := next(ctx)
//	        // post-processing
//	        return result, err
//	    }
//	}
//
// A continuation must be invoked at most once per execution; a second
// call fails with [ErrNextCalledTwice] without re-running the inner
// layers.
//
// # Enqueue Interception
//
// [EnqueueChain] holds interceptors that run linearly when a job is
// submitted. An interceptor can rewrite the outgoing request or return
// (nil, nil) to drop it before it reaches the coordinator.
package middleware

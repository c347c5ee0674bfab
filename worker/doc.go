// Package worker implements the OJS worker: a claim loop that pulls
// jobs from a coordinator, an execution pipeline that dispatches them
// to registered handlers through middleware, and the lifecycle state
// machine that drains in-flight work on shutdown.
//
//	reg := job.NewRegistry()
//	job.MustRegister(reg, job.NewDefinition("email.send",
//	    func(ctx context.Context, in EmailInput) (any, error) {
//	        return nil, mailer.Send(ctx, in.To, in.Body)
//	    },
//	))
//
//	w := worker.New(transport.NewHTTP("http://localhost:8288"), reg,
//	    worker.WithQueues("default", "email"),
//	    worker.WithConcurrency(20),
//	)
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop(context.Background())
//
// # Lifecycle
//
// A worker moves through four states: terminated → running → quiet →
// terminate → terminated. Start flips it to running and launches the
// claim and heartbeat loops. A coordinator heartbeat directive can
// quiet the worker (stop claiming, finish in-flight work) or terminate
// it; Stop does the same locally. Termination drains in-flight
// executions for up to ShutdownGrace, then fires each remaining
// execution's cancellation cause with [ojs.ErrWorkerShutdown].
//
// # Concurrency
//
// The claim loop sizes every request to the remaining concurrency
// budget, capped at ten jobs per request, so the worker never reserves
// more than it can run. When the budget is exhausted the loop sleeps
// for PollInterval; claim failures back off exponentially and never
// stop the loop.
//
// # Execution
//
// Each claimed job runs in its own goroutine with a context that is
// cancelled with [ojs.ErrExecutionTimeout] when the envelope's timeout
// elapses. The pipeline classifies failures by that cancellation
// cause, reports the outcome to the coordinator best-effort, and
// converts handler panics into failures instead of crashing the
// worker. Jobs whose type has no registered handler fail immediately
// with a non-retryable no_handler error, before any middleware runs.
package worker

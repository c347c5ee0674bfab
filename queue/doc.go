// Package queue provides worker-local, per-queue concurrency caps and
// rate limiting.
//
// Queues are named channels that group related jobs. Jobs carry a Queue
// field that determines which queue they belong to, and a worker claims
// from the queues listed in its configuration (default: ["default"]).
// The coordinator owns global queue state; this package only shapes how
// aggressively one worker draws from each queue.
//
// # Per-Queue Configuration
//
// Use [Config] to set per-queue rate limits and active-job caps:
//
//	queue.Config{
//	    Name:      "email",
//	    MaxActive: 5,      // max 5 concurrent email jobs on this worker
//	    RateLimit: 10,     // max 10 launches/s from this queue
//	    RateBurst: 20,     // allow bursts up to 20
//	}
//
// Build a [Manager] from the configs and hand it to the worker:
//
//	gates := queue.NewManager(
//	    queue.Config{Name: "critical", MaxActive: 20},
//	    queue.Config{Name: "bulk", RateLimit: 5, RateBurst: 10},
//	)
//	w := worker.New(tp, reg,
//	    worker.WithQueues("critical", "bulk"),
//	    worker.WithQueueGates(gates),
//	)
//
// # Manager
//
// [Manager] enforces the limits in two places. Before each claim
// request, [Manager.Eligible] drops queues that are saturated or out of
// rate tokens. At launch, [Manager.Acquire] consumes a token (waiting
// if necessary) and tracks the active count until [Manager.Release].
// The rate limiter is a token bucket (golang.org/x/time/rate).
//
// Queues without a [Config] have no limits beyond the worker-wide
// concurrency.
package queue

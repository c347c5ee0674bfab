// Package client provides the enqueue side of the OJS protocol: job
// submission with interceptors, batch submission, and queue and
// schedule administration.
//
// A Client shares the transport bindings with the worker, so the same
// HTTP or WebSocket connection details work for both:
//
//	c := client.New(transport.NewHTTP("http://localhost:8288"))
//	defer c.Close()
//
//	j, err := c.Enqueue(ctx, "email.send",
//	    EmailPayload{To: "user@example.com"},
//	    client.WithQueue("email"),
//	)
//
// Interceptors observe, mutate, or drop jobs on their way to the
// coordinator. Unlike the worker's execution middleware they compose
// linearly; dropping is signalled by returning (nil, nil) without
// calling next:
//
//	c.Intercept("tenant-tag", func(ctx context.Context, req *wire.JobRequest, next middleware.EnqueueNext) (*job.Job, error) {
//	    req.Meta["tenant"] = tenantFrom(ctx)
//	    return next(ctx, req)
//	})
package client

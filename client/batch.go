package client

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/wire"
)

// BatchItem is one submission in a batch.
type BatchItem struct {
	// Type is the dot-namespaced job type.
	Type string

	// Payload is JSON-marshalled into the job envelope.
	Payload any

	// Opts adjust this one submission.
	Opts []EnqueueOption
}

// EnqueueBatch submits items concurrently, bounded by the client's
// batch concurrency. Results hold positions matching the input: a nil
// entry means that item was dropped by an interceptor. The first error
// cancels the remaining submissions; items already acknowledged by the
// coordinator stay enqueued.
func (c *Client) EnqueueBatch(ctx context.Context, items []BatchItem) ([]*job.Job, error) {
	// Requests are assembled up front so a malformed item fails the
	// batch before anything reaches the coordinator.
	reqs := make([]*wire.JobRequest, len(items))
	for i, item := range items {
		req, err := c.newRequest(item.Type, item.Payload, item.Opts...)
		if err != nil {
			return nil, err
		}
		reqs[i] = req
	}

	results := make([]*job.Job, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.batchLimit)

	for i := range items {
		g.Go(func() error {
			j, err := c.submit(gctx, reqs[i])
			if err != nil {
				return err
			}
			results[i] = j
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

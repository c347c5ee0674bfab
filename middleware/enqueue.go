package middleware

import (
	"context"

	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/wire"
)

// EnqueueNext continues the enqueue chain with a possibly mutated
// request.
type EnqueueNext func(ctx context.Context, req *wire.JobRequest) (*job.Job, error)

// EnqueueFunc intercepts a job submission on its way to the
// coordinator. The interceptor may mutate the request before passing it
// to next, or return (nil, nil) without calling next to drop the job
// silently. Unlike execution middleware, enqueue interceptors compose
// linearly: each one runs once, in insertion order.
type EnqueueFunc func(ctx context.Context, req *wire.JobRequest, next EnqueueNext) (*job.Job, error)

// EnqueueChain is an ordered collection of named enqueue interceptors.
type EnqueueChain struct {
	list entryList[EnqueueFunc]
}

// NewEnqueueChain creates an empty enqueue chain.
func NewEnqueueChain() *EnqueueChain {
	return &EnqueueChain{}
}

// Use appends an interceptor to the end of the chain.
func (c *EnqueueChain) Use(name string, fn EnqueueFunc) {
	c.list.use(name, fn)
}

// Prepend adds an interceptor at the start of the chain.
func (c *EnqueueChain) Prepend(name string, fn EnqueueFunc) {
	c.list.prepend(name, fn)
}

// InsertBefore adds an interceptor immediately before the named anchor.
func (c *EnqueueChain) InsertBefore(anchor, name string, fn EnqueueFunc) error {
	return c.list.insertBefore(anchor, name, fn)
}

// InsertAfter adds an interceptor immediately after the named anchor.
func (c *EnqueueChain) InsertAfter(anchor, name string, fn EnqueueFunc) error {
	return c.list.insertAfter(anchor, name, fn)
}

// Remove deletes the named interceptor. Removing an absent name is a
// no-op.
func (c *EnqueueChain) Remove(name string) {
	c.list.remove(name)
}

// Has reports whether the named interceptor is in the chain.
func (c *EnqueueChain) Has(name string) bool {
	return c.list.has(name)
}

// Names returns the entry names in current order.
func (c *EnqueueChain) Names() []string {
	return c.list.names()
}

// Len returns the number of entries.
func (c *EnqueueChain) Len() int {
	return len(c.list.snapshot())
}

// Clear removes all entries.
func (c *EnqueueChain) Clear() {
	c.list.clear()
}

// Then composes the chain's current entries ahead of a terminal enqueue
// operation. A nil request reaching any stage stops the chain and
// reports the job as dropped: the terminal operation never runs.
func (c *EnqueueChain) Then(final EnqueueNext) EnqueueNext {
	entries := c.list.snapshot()
	var run func(ctx context.Context, req *wire.JobRequest, i int) (*job.Job, error)
	run = func(ctx context.Context, req *wire.JobRequest, i int) (*job.Job, error) {
		if req == nil {
			return nil, nil
		}
		if i == len(entries) {
			return final(ctx, req)
		}
		next := func(ctx context.Context, r *wire.JobRequest) (*job.Job, error) {
			return run(ctx, r, i+1)
		}
		return entries[i].fn(ctx, req, next)
	}
	return func(ctx context.Context, req *wire.JobRequest) (*job.Job, error) {
		return run(ctx, req, 0)
	}
}

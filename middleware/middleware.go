package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/openjobspec/ojs-go/job"
)

var (
	// ErrEntryNotFound is returned when an insert names an anchor entry
	// that is not in the chain.
	ErrEntryNotFound = errors.New("ojs: middleware entry not found")

	// ErrNextCalledTwice is returned when an interceptor invokes its
	// continuation more than once in a single execution.
	ErrNextCalledTwice = errors.New("ojs: middleware invoked next more than once")
)

// Handler is the terminal function that executes job logic and returns
// the job's result payload.
type Handler func(ctx context.Context, ex *job.Execution) (any, error)

// Next continues the chain toward the terminal handler.
type Next func(ctx context.Context) (any, error)

// Func wraps a Handler with cross-cutting logic. It receives the
// current context, the execution, and the continuation. An interceptor
// may decline to call next, short-circuiting the remaining chain and
// the terminal handler.
type Func func(ctx context.Context, ex *job.Execution, next Next) (any, error)

// namedEntry pairs a name with an interceptor of either chain kind.
type namedEntry[F any] struct {
	name string
	fn   F
}

// entryList is the ordered, named entry collection shared by both chain
// kinds. It is safe for concurrent use.
type entryList[F any] struct {
	mu      sync.RWMutex
	entries []namedEntry[F]
}

func (l *entryList[F]) use(name string, fn F) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, namedEntry[F]{name: name, fn: fn})
}

func (l *entryList[F]) prepend(name string, fn F) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]namedEntry[F]{{name: name, fn: fn}}, l.entries...)
}

// indexOf returns the position of name, or -1. Caller holds the lock.
func (l *entryList[F]) indexOf(name string) int {
	for i, e := range l.entries {
		if e.name == name {
			return i
		}
	}
	return -1
}

func (l *entryList[F]) insertAt(idx int, name string, fn F) {
	l.entries = append(l.entries, namedEntry[F]{})
	copy(l.entries[idx+1:], l.entries[idx:])
	l.entries[idx] = namedEntry[F]{name: name, fn: fn}
}

func (l *entryList[F]) insertBefore(anchor, name string, fn F) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexOf(anchor)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrEntryNotFound, anchor)
	}
	l.insertAt(idx, name, fn)
	return nil
}

func (l *entryList[F]) insertAfter(anchor, name string, fn F) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexOf(anchor)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrEntryNotFound, anchor)
	}
	l.insertAt(idx+1, name, fn)
	return nil
}

func (l *entryList[F]) remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexOf(name)
	if idx < 0 {
		return
	}
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
}

func (l *entryList[F]) has(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.indexOf(name) >= 0
}

func (l *entryList[F]) names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, len(l.entries))
	for i, e := range l.entries {
		names[i] = e.name
	}
	return names
}

func (l *entryList[F]) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

func (l *entryList[F]) snapshot() []namedEntry[F] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]namedEntry[F](nil), l.entries...)
}

// Chain is an ordered collection of named execution-side interceptors.
// Structural edits are safe for concurrent use; composition snapshots
// the current order.
type Chain struct {
	list entryList[Func]
}

// NewChain creates an empty execution chain.
func NewChain() *Chain {
	return &Chain{}
}

// Use appends an interceptor to the end of the chain.
func (c *Chain) Use(name string, fn Func) {
	c.list.use(name, fn)
}

// Prepend adds an interceptor at the start of the chain, making it the
// outermost layer.
func (c *Chain) Prepend(name string, fn Func) {
	c.list.prepend(name, fn)
}

// InsertBefore adds an interceptor immediately before the named anchor.
func (c *Chain) InsertBefore(anchor, name string, fn Func) error {
	return c.list.insertBefore(anchor, name, fn)
}

// InsertAfter adds an interceptor immediately after the named anchor.
func (c *Chain) InsertAfter(anchor, name string, fn Func) error {
	return c.list.insertAfter(anchor, name, fn)
}

// Remove deletes the named interceptor. Removing an absent name is a
// no-op.
func (c *Chain) Remove(name string) {
	c.list.remove(name)
}

// Has reports whether the named interceptor is in the chain.
func (c *Chain) Has(name string) bool {
	return c.list.has(name)
}

// Names returns the entry names in current order.
func (c *Chain) Names() []string {
	return c.list.names()
}

// Len returns the number of entries.
func (c *Chain) Len() int {
	return len(c.list.snapshot())
}

// Clear removes all entries.
func (c *Chain) Clear() {
	c.list.clear()
}

// Then composes the chain's current entries around a terminal handler.
// Entries wrap the handler in the onion model: the first entry is the
// outermost layer. Each invocation of the returned handler gets its own
// dispatch state, so one composed handler is safe for concurrent
// executions.
func (c *Chain) Then(final Handler) Handler {
	entries := c.list.snapshot()
	return func(ctx context.Context, ex *job.Execution) (any, error) {
		guard := &dispatchGuard{high: -1}
		return dispatch(ctx, ex, entries, final, 0, guard)
	}
}

// dispatchGuard tracks the highest index dispatched during one composed
// invocation. It is threaded explicitly through dispatch rather than
// captured in closure state.
type dispatchGuard struct {
	high int
}

// dispatch invokes entry i with a continuation for entry i+1, or the
// terminal handler once i exhausts the list. A continuation invoked a
// second time re-enters with an index at or below the high-water mark
// and fails without re-invoking anything downstream.
func dispatch(ctx context.Context, ex *job.Execution, entries []namedEntry[Func], final Handler, i int, g *dispatchGuard) (any, error) {
	if i <= g.high {
		return nil, fmt.Errorf("middleware %q: %w", entries[i-1].name, ErrNextCalledTwice)
	}
	g.high = i

	if i == len(entries) {
		return final(ctx, ex)
	}

	next := func(ctx context.Context) (any, error) {
		return dispatch(ctx, ex, entries, final, i+1, g)
	}
	return entries[i].fn(ctx, ex, next)
}

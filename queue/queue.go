package queue

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines local, per-queue limits applied by a worker on top of
// whatever the coordinator enforces globally.
type Config struct {
	// Name is the queue identifier (must match the job.Queue field).
	Name string

	// MaxActive limits how many jobs from this queue may run
	// simultaneously on this worker. Zero means no queue-specific limit
	// (worker-wide concurrency still applies).
	MaxActive int

	// RateLimit is the maximum sustained jobs per second this worker
	// launches from this queue. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// queueState tracks runtime state for a single queue.
type queueState struct {
	config  Config
	limiter *rate.Limiter
	slots   chan struct{} // capacity MaxActive; nil when unlimited
	active  int
}

// Manager enforces per-queue limits in two places: Eligible filters the
// queue list before each claim request, and Acquire paces job launches
// and tracks active counts. It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	queues map[string]*queueState
}

// NewManager creates a Manager with the given queue configurations.
// Queues not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		queues: make(map[string]*queueState, len(configs)),
	}
	for _, cfg := range configs {
		m.queues[cfg.Name] = newQueueState(cfg)
	}
	return m
}

func newQueueState(cfg Config) *queueState {
	qs := &queueState{config: cfg}
	if cfg.MaxActive > 0 {
		qs.slots = make(chan struct{}, cfg.MaxActive)
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		qs.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return qs
}

// Eligible returns the subset of queues the worker should claim from
// right now. A queue is excluded while its MaxActive limit is reached
// or its rate limiter has no token available. Unconfigured queues are
// always eligible. The check does not consume tokens; Acquire does.
func (m *Manager) Eligible(queues []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(queues))
	for _, name := range queues {
		qs := m.queues[name]
		if qs == nil {
			out = append(out, name)
			continue
		}
		if qs.config.MaxActive > 0 && qs.active >= qs.config.MaxActive {
			continue
		}
		if qs.limiter != nil && qs.limiter.Tokens() < 1 {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Acquire reserves a launch slot on the queue: it waits for MaxActive
// capacity and then, if the queue is rate limited, for a token. A
// claimed job is never rejected here — claim-time filtering via
// Eligible keeps the worker from overdrawing a queue, and a multi-job
// claim that overshoots the cap is smoothed by waiting. Cancelling ctx
// abandons the wait and undoes the accounting. The caller MUST call
// Release when the job completes.
func (m *Manager) Acquire(ctx context.Context, queue string) error {
	m.mu.Lock()
	qs := m.queues[queue]
	m.mu.Unlock()
	if qs == nil {
		return nil
	}

	if qs.slots != nil {
		select {
		case qs.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if qs.limiter != nil {
		if err := qs.limiter.Wait(ctx); err != nil {
			if qs.slots != nil {
				<-qs.slots
			}
			return err
		}
	}

	// Re-fetch in case SetConfig swapped the state during the waits above;
	// the count must land on the state Release will see.
	m.mu.Lock()
	if cur := m.queues[queue]; cur != nil {
		cur.active++
	}
	m.mu.Unlock()
	return nil
}

// Release returns the slot taken by Acquire and decrements the active
// job count for the queue.
func (m *Manager) Release(queue string) {
	m.mu.Lock()
	qs := m.queues[queue]
	if qs != nil && qs.active > 0 {
		qs.active--
	}
	m.mu.Unlock()

	if qs != nil && qs.slots != nil {
		select {
		case <-qs.slots:
		default:
			// SetConfig swapped the state since this job acquired and
			// the carried slots are already drained.
		}
	}
}

// SetConfig dynamically updates (or creates) a queue configuration.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.queues[cfg.Name]
	qs := newQueueState(cfg)

	// Preserve the active count across reconfiguration and carry the
	// in-flight jobs into the new slot gate so their releases balance.
	if existing != nil {
		qs.active = existing.active
		if qs.slots != nil {
			for range min(qs.active, cap(qs.slots)) {
				qs.slots <- struct{}{}
			}
		}
	}
	m.queues[cfg.Name] = qs
}

// ActiveCount returns the current number of active jobs for a queue.
func (m *Manager) ActiveCount(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if qs := m.queues[queue]; qs != nil {
		return qs.active
	}
	return 0
}

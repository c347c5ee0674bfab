package worker

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	ojs "github.com/openjobspec/ojs-go"
	"github.com/openjobspec/ojs-go/durable"
	"github.com/openjobspec/ojs-go/hook"
	"github.com/openjobspec/ojs-go/id"
	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/middleware"
	"github.com/openjobspec/ojs-go/queue"
	"github.com/openjobspec/ojs-go/transport"
)

// State is a worker lifecycle state.
type State string

const (
	// StateRunning means both the claim loop and the heartbeat loop are
	// active and new work is being pulled.
	StateRunning State = "running"

	// StateQuiet means no new jobs are claimed while in-flight
	// executions run to completion. Entered on coordinator directive.
	StateQuiet State = "quiet"

	// StateTerminate means the worker is draining: loops have stopped
	// and in-flight executions get ShutdownGrace to finish.
	StateTerminate State = "terminate"

	// StateTerminated is the resting state, before Start and after the
	// drain completes.
	StateTerminated State = "terminated"
)

// activeJob is the worker's record of one in-flight execution: the
// claimed envelope, the cancellation cause for its context, and the
// timer that fires the execution timeout, when the job carries one.
type activeJob struct {
	job     *job.Job
	cancel  context.CancelCauseFunc
	timer   *time.Timer
	timeout time.Duration
	gated   bool // queue gate slot held, released on settle
}

// Worker claims jobs from a coordinator and executes registered
// handlers under a bounded concurrency budget. A Worker can be
// restarted: Stop drains it back to terminated, after which Start
// begins a fresh run.
type Worker struct {
	cfg         ojs.Config
	registry    *job.Registry
	coord       *transport.Coordinator
	chain       *middleware.Chain
	hooks       *hook.Registry
	gates       *queue.Manager
	checkpoints durable.CheckpointStore
	logger      *slog.Logger
	workerID    id.WorkerID
	hostname    string

	initHooks []hook.Hook

	mu     sync.Mutex
	state  State
	active map[string]*activeJob

	// Per-run signalling, rebuilt by Start so the worker can restart.
	claimStop chan struct{} // closed when the worker leaves running
	stop      chan struct{} // closed when the worker enters terminate
	settled   chan struct{} // pulsed when an execution settles during drain
	done      chan struct{} // closed when the worker reaches terminated
	runCancel context.CancelFunc

	completed atomic.Int64
	startedAt time.Time

	loopWg sync.WaitGroup // claim + heartbeat loops
	execWg sync.WaitGroup // in-flight executions
}

// Option configures a Worker.
type Option func(*Worker)

// WithConfig replaces the whole configuration. Options applied after
// it override individual fields.
func WithConfig(cfg ojs.Config) Option {
	return func(w *Worker) { w.cfg = cfg }
}

// WithQueues sets the queues to claim from, in priority order.
func WithQueues(queues ...string) Option {
	return func(w *Worker) { w.cfg.Queues = queues }
}

// WithConcurrency sets the maximum number of concurrently executing
// jobs.
func WithConcurrency(n int) Option {
	return func(w *Worker) { w.cfg.Concurrency = n }
}

// WithPollInterval sets how long the claim loop waits when no work or
// no capacity is available.
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) { w.cfg.PollInterval = d }
}

// WithHeartbeatInterval sets how often the worker reports liveness.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(w *Worker) { w.cfg.HeartbeatInterval = d }
}

// WithShutdownGrace sets how long a draining worker waits for
// in-flight jobs before cancelling them.
func WithShutdownGrace(d time.Duration) Option {
	return func(w *Worker) { w.cfg.ShutdownGrace = d }
}

// WithVisibilityTimeout sets the reservation window requested with
// each claim.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(w *Worker) { w.cfg.VisibilityTimeout = d }
}

// WithLabels sets opaque key/value pairs reported with each heartbeat.
func WithLabels(labels map[string]string) Option {
	return func(w *Worker) { w.cfg.Labels = labels }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithHooks registers lifecycle hooks at construction.
func WithHooks(hooks ...hook.Hook) Option {
	return func(w *Worker) { w.initHooks = append(w.initHooks, hooks...) }
}

// WithQueueGates sets a queue manager enforcing per-queue concurrency
// caps and rate limits on top of the worker-wide budget.
func WithQueueGates(m *queue.Manager) Option {
	return func(w *Worker) { w.gates = m }
}

// WithCheckpointStore overrides where durable jobs load and save their
// checkpoints. By default they go through the worker's transport.
func WithCheckpointStore(store durable.CheckpointStore) Option {
	return func(w *Worker) { w.checkpoints = store }
}

// New creates a worker that claims over t and dispatches to handlers
// registered in registry. The worker starts in the terminated state;
// call Start to begin claiming.
func New(t transport.Transport, registry *job.Registry, opts ...Option) *Worker {
	w := &Worker{
		cfg:      ojs.DefaultConfig(),
		registry: registry,
		chain:    middleware.NewChain(),
		logger:   slog.Default(),
		workerID: id.NewWorkerID(),
		state:    StateTerminated,
		active:   make(map[string]*activeJob),
	}
	if t != nil {
		w.coord = transport.NewCoordinator(t)
	}
	w.hostname, _ = os.Hostname()

	for _, opt := range opts {
		opt(w)
	}

	w.hooks = hook.NewRegistry(w.logger)
	for _, h := range w.initHooks {
		w.hooks.Register(h)
	}
	w.initHooks = nil

	if w.coord != nil && w.checkpoints == nil {
		w.checkpoints = transport.NewCheckpointClient(w.coord)
	}
	return w
}

// WorkerID returns the worker's unique identifier.
func (w *Worker) WorkerID() id.WorkerID { return w.workerID }

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// ActiveCount returns the number of in-flight executions.
func (w *Worker) ActiveCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active)
}

// CompletedCount returns the number of jobs completed since the last
// Start.
func (w *Worker) CompletedCount() int64 { return w.completed.Load() }

// Middleware returns the execution middleware chain. Edits apply to
// executions dispatched after the edit.
func (w *Worker) Middleware() *middleware.Chain { return w.chain }

// Use appends named execution middleware. Shorthand for
// Middleware().Use.
func (w *Worker) Use(name string, fn middleware.Func) { w.chain.Use(name, fn) }

// RegisterHook adds a lifecycle hook. Register hooks before Start.
func (w *Worker) RegisterHook(h hook.Hook) { w.hooks.Register(h) }

// Start moves the worker from terminated to running and launches the
// claim and heartbeat loops. It returns immediately; ctx is used for
// hook notification only. Starting a worker that is not terminated
// returns ErrAlreadyActive; a draining worker must finish its drain
// before it can start again.
func (w *Worker) Start(ctx context.Context) error {
	if w.coord == nil {
		return ojs.ErrNoTransport
	}

	w.mu.Lock()
	if w.state != StateTerminated {
		w.mu.Unlock()
		return ojs.ErrAlreadyActive
	}
	w.state = StateRunning
	w.active = make(map[string]*activeJob)
	w.claimStop = make(chan struct{})
	w.stop = make(chan struct{})
	w.settled = make(chan struct{}, 1)
	w.done = make(chan struct{})
	w.completed.Store(0)
	w.startedAt = time.Now()

	runCtx, runCancel := context.WithCancel(context.Background())
	w.runCancel = runCancel
	claimStop, stop := w.claimStop, w.stop
	w.mu.Unlock()

	w.logger.Info("worker starting",
		slog.String("worker_id", w.workerID.String()),
		slog.Int("concurrency", w.cfg.Concurrency),
		slog.Any("queues", w.cfg.Queues),
	)
	w.hooks.EmitWorkerStarted(ctx, w.workerID)
	w.hooks.EmitWorkerStateChanged(ctx, w.workerID, string(StateTerminated), string(StateRunning))

	w.loopWg.Add(2)
	go w.claimLoop(runCtx, claimStop)
	go w.heartbeatLoop(runCtx, stop)

	return nil
}

// Stop requests termination and blocks until the drain completes or
// ctx expires. Stopping a terminated worker is a no-op.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.state == StateTerminated {
		w.mu.Unlock()
		return nil
	}
	done := w.done
	w.mu.Unlock()

	w.enterTerminate(ctx, "stop requested")

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enterQuiet stops claim scheduling while in-flight executions
// continue. Valid only while running; any other state ignores it.
func (w *Worker) enterQuiet(ctx context.Context) {
	w.mu.Lock()
	if w.state != StateRunning {
		w.mu.Unlock()
		return
	}
	w.state = StateQuiet
	close(w.claimStop)
	w.mu.Unlock()

	w.logger.Info("worker quieted",
		slog.String("worker_id", w.workerID.String()),
		slog.Int("active_jobs", w.ActiveCount()),
	)
	w.hooks.EmitWorkerStateChanged(ctx, w.workerID, string(StateRunning), string(StateQuiet))
}

// enterTerminate moves the worker into terminate, stops both loops,
// and hands off to the drain goroutine. Only the first caller acts;
// the transition is one-way until the drain finishes.
func (w *Worker) enterTerminate(ctx context.Context, reason string) {
	w.mu.Lock()
	if w.state == StateTerminate || w.state == StateTerminated {
		w.mu.Unlock()
		return
	}
	from := w.state
	w.state = StateTerminate
	if from == StateRunning {
		close(w.claimStop)
	}
	close(w.stop)
	w.runCancel()
	w.mu.Unlock()

	w.logger.Info("worker terminating",
		slog.String("worker_id", w.workerID.String()),
		slog.String("reason", reason),
		slog.Int("active_jobs", w.ActiveCount()),
	)
	w.hooks.EmitWorkerStateChanged(ctx, w.workerID, string(from), string(StateTerminate))

	go w.terminate()
}

// terminate waits for the loops to exit, drains in-flight executions,
// and settles the worker back into terminated.
func (w *Worker) terminate() {
	w.loopWg.Wait()

	if clean := w.drain(); clean {
		w.execWg.Wait()
	}

	w.mu.Lock()
	w.state = StateTerminated
	done := w.done
	w.mu.Unlock()

	completed := w.completed.Load()
	uptime := time.Since(w.startedAt)

	ctx := context.Background()
	w.hooks.EmitWorkerStateChanged(ctx, w.workerID, string(StateTerminate), string(StateTerminated))
	w.hooks.EmitWorkerStopped(ctx, w.workerID, completed, uptime)
	w.logger.Info("worker stopped",
		slog.String("worker_id", w.workerID.String()),
		slog.Int64("completed_jobs", completed),
		slog.Duration("uptime", uptime),
	)

	close(done)
}

// drain waits for in-flight executions to settle, at most
// ShutdownGrace. When the grace period expires, every remaining
// execution's cancellation cause fires with ErrWorkerShutdown so
// handlers can abort cooperatively. Reports whether every execution
// settled in time.
func (w *Worker) drain() bool {
	w.mu.Lock()
	n := len(w.active)
	settled := w.settled
	w.mu.Unlock()
	if n == 0 {
		return true
	}

	w.logger.Info("draining in-flight jobs",
		slog.Int("active_jobs", n),
		slog.Duration("grace", w.cfg.ShutdownGrace),
	)

	grace := time.NewTimer(w.cfg.ShutdownGrace)
	defer grace.Stop()

	for {
		select {
		case <-settled:
			w.mu.Lock()
			remaining := len(w.active)
			w.mu.Unlock()
			if remaining == 0 {
				return true
			}
		case <-grace.C:
			w.cancelActive()
			return false
		}
	}
}

// cancelActive fires the cancellation cause of every remaining
// execution.
func (w *Worker) cancelActive() {
	w.mu.Lock()
	recs := make([]*activeJob, 0, len(w.active))
	for _, rec := range w.active {
		recs = append(recs, rec)
	}
	w.mu.Unlock()

	for _, rec := range recs {
		w.logger.Warn("grace period expired, cancelling job",
			slog.String("job_id", rec.job.ID.String()),
			slog.String("job_type", rec.job.Type),
		)
		rec.cancel(ojs.ErrWorkerShutdown)
	}
}

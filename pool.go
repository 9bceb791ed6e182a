package lattice

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// sequentialQueue is the per-dependent-cell FIFO described in spec.md
// §4.4: all combine invocations whose dependent is this cell run one at a
// time, in enqueue order.
type sequentialQueue[V any] struct {
	mu    sync.Mutex
	items []func()
}

// Pool is the handler pool: a bounded worker pool with two
// bookkeeping layers — a submitted-task counter for quiescence detection,
// and a per-cell FIFO registry for serializing callbacks (spec.md §3.5,
// §4.3). Grounded on the teacher's async-dispatch idiom in scope.go
// (`go s.triggerUpdates(...)`), generalized into an explicit worker pool
// the way PaulHobbs-ci/task.go's dataflow package and
// Keyhole-Koro-InsightifyCore/worker_spec.go structure task execution: a
// growable task queue guarded by a condition variable and drained by N
// long-lived worker goroutines, rather than a semaphore-limited
// per-task dispatcher. All workers take from that one shared FIFO queue;
// there are no per-worker queues and no work stealing. A worker callback frequently needs to submit more
// work reentrantly (decSubmitted draining quiescence handlers, the
// sequential-callback scheduler resubmitting its own drain loop) — a
// semaphore-bounded dispatcher would have that reentrant submission
// block on the very slot the calling worker already holds, so the queue
// here never blocks a submitter; only the workers block, on having
// nothing to do.
type Pool[V any] struct {
	taskMu    sync.Mutex
	taskCond  *sync.Cond
	tasks     []func()
	stopping  bool
	workersWG sync.WaitGroup

	qMu                sync.Mutex
	submitted          int64
	quiescenceHandlers []func()

	regMu        sync.Mutex
	cellsNotDone map[*Cell[V]]*sequentialQueue[V]
	registry     *CellRegistry

	shutdown atomic.Bool

	onException func(error)
	logger      *slog.Logger
	extensions  []Extension[V]
}

// PoolOption configures a Pool at construction, mirroring the teacher's
// ScopeOption functional-option idiom (scope.go).
type PoolOption[V any] func(*Pool[V])

// WithSlog attaches a structured logger; the default is slog.Default().
func WithSlog[V any](logger *slog.Logger) PoolOption[V] {
	return func(p *Pool[V]) { p.logger = logger }
}

// WithExtension registers an Extension's lifecycle hooks on the pool.
func WithExtension[V any](ext Extension[V]) PoolOption[V] {
	return func(p *Pool[V]) { p.extensions = append(p.extensions, ext) }
}

// AddExtension registers an extension after construction — needed for
// extensions (like the graph-debug one) that want a reference to the pool
// itself and so must be built after NewPool returns. Call during setup,
// before triggering any cells; not safe to call concurrently with running
// work.
func (p *Pool[V]) AddExtension(ext Extension[V]) {
	p.extensions = append(p.extensions, ext)
}

// Registry exposes the pool's id -> cell lookup table for introspection
// tools (the graph-debug extension, a latticetop-style dashboard).
func (p *Pool[V]) Registry() *CellRegistry {
	return p.registry
}

// NewPool creates a pool with the given worker parallelism and unhandled-
// callback-exception handler (spec.md §4.3, §6). onException may be nil,
// in which case failures are only logged. parallelism long-lived worker
// goroutines are started immediately and run until Shutdown drains them.
func NewPool[V any](parallelism int, onException func(error), opts ...PoolOption[V]) *Pool[V] {
	if parallelism < 1 {
		parallelism = 1
	}

	p := &Pool[V]{
		cellsNotDone: make(map[*Cell[V]]*sequentialQueue[V]),
		registry:     newCellRegistry(),
		onException:  onException,
		logger:       slog.Default(),
	}
	p.taskCond = sync.NewCond(&p.taskMu)
	for _, opt := range opts {
		opt(p)
	}

	p.workersWG.Add(parallelism)
	for i := 0; i < parallelism; i++ {
		go p.worker()
	}
	return p
}

// worker is one of the pool's N long-lived goroutines: block for work,
// run it, repeat, until the queue is empty and the pool is stopping.
func (p *Pool[V]) worker() {
	defer p.workersWG.Done()
	for {
		p.taskMu.Lock()
		for len(p.tasks) == 0 && !p.stopping {
			p.taskCond.Wait()
		}
		if len(p.tasks) == 0 {
			p.taskMu.Unlock()
			return
		}
		task := p.tasks[0]
		p.tasks = p.tasks[1:]
		p.taskMu.Unlock()

		p.runSafely(task)
	}
}

// MkCell creates a cell, registers it with the pool at bottom, and
// returns it in Pending state. init runs exactly once, the first time the
// cell is triggered (spec.md §3.4). A nil key defaults to DefaultKey[V].
func (p *Pool[V]) MkCell(key Key[V], lat Lattice[V], init InitFunc[V]) *Cell[V] {
	if key == nil {
		key = DefaultKey[V]{}
	}
	c := newCell(p, key, lat, init)
	p.register(c)
	return c
}

// MkCompletedCell returns a cell already in Completed state holding
// value, never registered with the pool's quiescence bookkeeping since it
// has nothing left to do (spec.md §6, §8: "mkCompletedCell(v).getResult()
// == v and state is Completed immediately").
func (p *Pool[V]) MkCompletedCell(lat Lattice[V], value V) *Cell[V] {
	c := newCell(p, DefaultKey[V]{}, lat, nil)
	c.state = StateCompleted
	c.value = value
	c.tasksActive.Store(true)
	return c
}

// Execute schedules an arbitrary task on the pool. Returns ErrPoolShutdown
// if Shutdown has already been called; otherwise behaves like the
// internal execute path used by cell triggering and propagation.
func (p *Pool[V]) Execute(task func()) error {
	if p.shutdown.Load() {
		return ErrPoolShutdown
	}
	p.execute(task)
	return nil
}

// execute is the internal submission path: every caller that may
// eventually run user code on the pool owns exactly one inc/dec pair
// around it (spec.md §4.3).
func (p *Pool[V]) execute(task func()) {
	p.incSubmitted()
	p.spawn(func() {
		defer p.decSubmitted()
		p.runSafely(task)
	})
}

// spawn enqueues a task for the next free worker, without touching the
// quiescence counter — used where the caller already owns the matching
// inc/dec pair at a finer granularity than one task (the sequential-
// callback scheduler, §4.4). Enqueuing never blocks the caller, so a
// worker goroutine can call spawn reentrantly (rescheduling a quiescence
// handler, resubmitting its own drain loop) without risking a deadlock
// against itself or its sibling workers.
func (p *Pool[V]) spawn(task func()) {
	p.taskMu.Lock()
	p.tasks = append(p.tasks, task)
	p.taskMu.Unlock()
	p.taskCond.Signal()
}

func (p *Pool[V]) runSafely(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.reportFailure(newCallbackError("", recoveredToError(r), "pool"))
		}
	}()
	task()
}

// incSubmitted increments the quiescence counter (spec.md §4.3).
func (p *Pool[V]) incSubmitted() {
	p.qMu.Lock()
	p.submitted++
	p.qMu.Unlock()
}

// decSubmitted is the quiescence observation point: when a decrement
// lands on zero, the handler list is drained and each handler is
// rescheduled via execute, which briefly re-enters non-quiescent state —
// intentional, since a handler may enqueue resolver work that must run
// before the next quiescence (spec.md §4.3).
func (p *Pool[V]) decSubmitted() {
	p.qMu.Lock()
	p.submitted--
	if p.submitted < 0 {
		p.qMu.Unlock()
		panic("lattice: quiescence counter decremented below zero")
	}
	var handlers []func()
	if p.submitted == 0 && len(p.quiescenceHandlers) > 0 {
		handlers = p.quiescenceHandlers
		p.quiescenceHandlers = nil
	}
	p.qMu.Unlock()

	for _, h := range handlers {
		p.execute(h)
	}
}

// OnQuiescent schedules handler to run once the pool reaches quiescence.
// If already quiescent, it is scheduled immediately via execute.
func (p *Pool[V]) OnQuiescent(handler func()) {
	p.qMu.Lock()
	if p.submitted == 0 {
		p.qMu.Unlock()
		p.execute(handler)
		return
	}
	p.quiescenceHandlers = append(p.quiescenceHandlers, handler)
	p.qMu.Unlock()
}

// IsQuiescent reports whether the pool currently has zero in-flight
// tasks. Racy by nature (another goroutine may submit immediately after),
// useful only for diagnostics and tests.
func (p *Pool[V]) IsQuiescent() bool {
	p.qMu.Lock()
	defer p.qMu.Unlock()
	return p.submitted == 0
}

// register adds a cell to the pool's registry with an empty sequential
// queue, the moment it's created (spec.md §3.4 lifecycle: "created →
// registered with pool").
func (p *Pool[V]) register(c *Cell[V]) {
	p.regMu.Lock()
	p.cellsNotDone[c] = &sequentialQueue[V]{}
	p.regMu.Unlock()
	p.registry.store(c)
}

// deregister removes a cell from the registry, called once a cell
// completes.
func (p *Pool[V]) deregister(c *Cell[V]) {
	p.regMu.Lock()
	delete(p.cellsNotDone, c)
	p.regMu.Unlock()
	p.registry.delete(c.id)
}

// QuiescentIncompleteCells returns every cell still registered with the
// pool (triggered or not, but not yet Completed) — the set the cycle
// resolver inspects at quiescence (spec.md §6).
func (p *Pool[V]) QuiescentIncompleteCells() []*Cell[V] {
	p.regMu.Lock()
	defer p.regMu.Unlock()
	out := make([]*Cell[V], 0, len(p.cellsNotDone))
	for c := range p.cellsNotDone {
		out = append(out, c)
	}
	return out
}

// scheduleSequentialCallback enqueues cb onto dependent's FIFO, following
// the exact enqueue protocol of spec.md §4.4: increment the quiescence
// counter now (the matching decrement happens on the dequeue path), then
// submit a drain worker only on the empty-to-non-empty transition.
func (p *Pool[V]) scheduleSequentialCallback(dependent *Cell[V], cb func()) {
	p.regMu.Lock()
	q, ok := p.cellsNotDone[dependent]
	p.regMu.Unlock()
	if !ok {
		return
	}

	p.incSubmitted()

	q.mu.Lock()
	wasEmpty := len(q.items) == 0
	q.items = append(q.items, cb)
	q.mu.Unlock()

	if wasEmpty {
		p.spawn(func() { p.drainSequential(dependent, q) })
	}
}

// drainSequential is callSequentialCallback(C) from spec.md §4.4: observe
// the head, run it, decrement, dequeue, and re-submit itself if more work
// remains. If the dependent has been deregistered (completed) mid-flight,
// remaining items are drained without running — their combine results
// would be no-ops against a completed cell, but their counter increments
// must still be matched to avoid leaking quiescence accounting.
func (p *Pool[V]) drainSequential(dependent *Cell[V], q *sequentialQueue[V]) {
	p.regMu.Lock()
	_, stillRegistered := p.cellsNotDone[dependent]
	p.regMu.Unlock()

	if !stillRegistered {
		q.mu.Lock()
		dropped := len(q.items)
		q.items = nil
		q.mu.Unlock()
		for i := 0; i < dropped; i++ {
			p.decSubmitted()
		}
		return
	}

	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return
	}
	head := q.items[0]
	q.mu.Unlock()

	p.runSafely(head)
	p.decSubmitted()

	q.mu.Lock()
	q.items = q.items[1:]
	remaining := len(q.items)
	q.mu.Unlock()

	if remaining > 0 {
		p.spawn(func() { p.drainSequential(dependent, q) })
	}
}

// reportFailure routes a non-fatal callback failure to the exception
// handler and logs it, without ever touching the failing cell's state
// (spec.md §7).
func (p *Pool[V]) reportFailure(err *CallbackError) {
	p.logger.Warn("lattice: callback failed", "cell", err.CellID, "context", err.Context, "error", err.Cause)
	if p.onException != nil {
		p.onException(err)
	}
}

func (p *Pool[V]) notifySettle(c *Cell[V], value V) {
	for _, ext := range p.extensions {
		ext.OnCellSettle(c, value)
	}
}

func (p *Pool[V]) notifyCycleResolved(cells []*Cell[V]) {
	for _, ext := range p.extensions {
		ext.OnCycleResolved(cells)
	}
}

// Shutdown stops accepting new top-level submissions through Execute and
// blocks until every in-flight (and self-rescheduled) task has run to
// completion, or ctx is done first (spec.md §4.3, §5: "shutdown()
// initiates orderly termination: no new submissions, in-flight tasks
// complete").
func (p *Pool[V]) Shutdown(ctx context.Context) error {
	p.shutdown.Store(true)

	done := make(chan struct{})
	go func() {
		qdone := make(chan struct{})
		p.OnQuiescent(func() { close(qdone) })
		<-qdone

		p.taskMu.Lock()
		p.stopping = true
		p.taskMu.Unlock()
		p.taskCond.Broadcast()

		p.workersWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

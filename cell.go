package lattice

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// State is a cell's position in its lifecycle: created, triggered, or
// settled at a terminal value.
type State int

const (
	// StatePending is the state before triggerExecution has run.
	StatePending State = iota
	// StateActive is the state after triggerExecution has run but before
	// any Final outcome has landed.
	StateActive
	// StateCompleted is the terminal state: value and dependency lists are
	// frozen.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// DepUpdate is one entry of the snapshot a combine callback receives: the
// upstream cell that fired, and the outcome it fired with.
type DepUpdate[V any] struct {
	Cell    *Cell[V]
	Outcome Outcome[V]
}

// CombineFunc computes a new outcome for a dependent cell in response to
// one or more upstream updates. This module adopts the convention spec.md
// §9 leaves open: each firing delivers a one-element snapshot containing
// only the dep that just changed, never a fold over all live deps.
type CombineFunc[V any] func(deps []DepUpdate[V]) Outcome[V]

// InitFunc produces a cell's initial outcome and, via the Completer, wires
// its dependencies (When) and cleanup hooks. Invoked exactly once, the
// first time the cell is triggered.
type InitFunc[V any] func(c *Completer[V]) Outcome[V]

// Cell is the unit of computation: a monotonically refined lattice value
// with dependency wiring and completion semantics (spec.md §3.4).
type Cell[V any] struct {
	id   string
	name string

	key     Key[V]
	lattice Lattice[V]
	pool    *Pool[V]

	mu                sync.Mutex
	value             V
	state             State
	nextDeps          map[*Cell[V]]CombineFunc[V]
	completeDeps      map[*Cell[V]]CombineFunc[V]
	nextCallbacks     map[*Cell[V]]struct{}
	completeCallbacks map[*Cell[V]]struct{}
	cleanups          []func()

	tasksActive atomic.Bool
	init        InitFunc[V]
}

func newCell[V any](p *Pool[V], key Key[V], lat Lattice[V], init InitFunc[V]) *Cell[V] {
	return &Cell[V]{
		id:                uuid.NewString(),
		key:               key,
		lattice:           lat,
		pool:              p,
		value:             lat.Bottom(),
		state:             StatePending,
		nextDeps:          make(map[*Cell[V]]CombineFunc[V]),
		completeDeps:      make(map[*Cell[V]]CombineFunc[V]),
		nextCallbacks:     make(map[*Cell[V]]struct{}),
		completeCallbacks: make(map[*Cell[V]]struct{}),
		init:              init,
	}
}

// ID returns this cell's stable identifier, used for logging and the
// graph-debug extension — never for lattice identity or ordering.
func (c *Cell[V]) ID() string { return c.id }

// Name returns the human label set via WithCellName, or "" if none.
func (c *Cell[V]) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// WithCellName sets a human label on a cell, mirroring the teacher's
// WithMeta tagging idiom. Returns the cell for chaining.
func (c *Cell[V]) WithCellName(name string) *Cell[V] {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
	return c
}

// GetResult returns the cell's current value without blocking. It may be
// bottom (never triggered), a partial refinement, or the final answer.
func (c *Cell[V]) GetResult() V {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// State reports the cell's current lifecycle state.
func (c *Cell[V]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsTriggered reports whether triggerExecution has fired for this cell.
func (c *Cell[V]) IsTriggered() bool {
	return c.tasksActive.Load()
}

// Dependencies returns a snapshot of the cells this cell currently depends
// on via When's next-outcome wiring. For a Completed cell this is always
// empty, since completion clears dependency state. Exposed for
// introspection; the core itself does not use it.
func (c *Cell[V]) Dependencies() []*Cell[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Cell[V], 0, len(c.nextDeps))
	for d := range c.nextDeps {
		out = append(out, d)
	}
	return out
}

// Trigger ensures this cell's init runs, at most once, asynchronously on
// the owning pool. Safe to call redundantly; a completed cell ignores it.
func (c *Cell[V]) Trigger() {
	if !c.tasksActive.CompareAndSwap(false, true) {
		return
	}
	c.pool.execute(func() {
		c.runInit()
	})
}

func (c *Cell[V]) runInit() {
	c.mu.Lock()
	if c.state == StateCompleted {
		c.mu.Unlock()
		return
	}
	if c.state == StatePending {
		c.state = StateActive
	}
	c.mu.Unlock()

	outcome, err := c.safelyRunInit()
	if err != nil {
		c.pool.reportFailure(newCallbackError(c.id, err, "init"))
		return
	}
	c.apply(outcome)
}

func (c *Cell[V]) safelyRunInit() (outcome Outcome[V], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoveredToError(r)
		}
	}()
	completer := &Completer[V]{cell: c}
	outcome = c.init(completer)
	return outcome, nil
}

// apply interprets a callback's Outcome per spec.md §4.1: Next -> put(v,
// false), Final -> put(v, true), NoOutcome -> no effect.
func (c *Cell[V]) apply(o Outcome[V]) {
	v, ok := o.Get()
	if !ok {
		return
	}
	c.put(v, o.IsFinal())
}

// When registers a dependency from self on other: other is triggered, the
// combine callback is wired onto both cells' dependency maps, and future
// updates to other are delivered to combine on self's sequential queue.
func (c *Cell[V]) When(other *Cell[V], combine CombineFunc[V]) {
	other.Trigger()

	c.mu.Lock()
	if c.state == StateCompleted {
		c.mu.Unlock()
		return
	}
	c.nextDeps[other] = combine
	c.completeDeps[other] = combine
	c.mu.Unlock()

	other.mu.Lock()
	already := other.state == StateCompleted
	var snapshotValue V
	if already {
		snapshotValue = other.value
	} else {
		other.nextCallbacks[c] = struct{}{}
		other.completeCallbacks[c] = struct{}{}
	}
	other.mu.Unlock()

	if already {
		// other settled before the wiring landed: deliver the final value
		// once, through the normal serialized-callback path, instead of
		// silently losing the update.
		c.pool.scheduleSequentialCallback(c, func() {
			c.invokeCombine(combine, []DepUpdate[V]{{Cell: other, Outcome: Final(snapshotValue)}})
		})
	}
}

// removeNextCallbacks severs the self -> dep "next" edge in both
// directions: dep is dropped from self.nextDeps, and self is dropped from
// dep.nextCallbacks. Used only by the cycle resolver.
func (c *Cell[V]) removeNextCallbacks(dep *Cell[V]) {
	if c == dep {
		c.mu.Lock()
		delete(c.nextDeps, dep)
		delete(c.nextCallbacks, c)
		c.mu.Unlock()
		return
	}
	c.mu.Lock()
	delete(c.nextDeps, dep)
	c.mu.Unlock()

	dep.mu.Lock()
	delete(dep.nextCallbacks, c)
	dep.mu.Unlock()
}

// removeCompleteCallbacks is the "complete" counterpart of
// removeNextCallbacks.
func (c *Cell[V]) removeCompleteCallbacks(dep *Cell[V]) {
	if c == dep {
		c.mu.Lock()
		delete(c.completeDeps, dep)
		delete(c.completeCallbacks, c)
		c.mu.Unlock()
		return
	}
	c.mu.Lock()
	delete(c.completeDeps, dep)
	c.mu.Unlock()

	dep.mu.Lock()
	delete(dep.completeCallbacks, c)
	dep.mu.Unlock()
}

// put joins v into the cell's value under lattice order (spec.md §4.1).
func (c *Cell[V]) put(v V, isFinal bool) {
	c.mu.Lock()
	if c.state == StateCompleted {
		c.mu.Unlock()
		return
	}

	joined := c.lattice.Join(c.value, v)
	increased := !c.lattice.Equals(joined, c.value)
	c.value = joined

	if !isFinal {
		if !increased {
			c.mu.Unlock()
			return
		}
		dependents := make([]*Cell[V], 0, len(c.nextCallbacks))
		for d := range c.nextCallbacks {
			dependents = append(dependents, d)
		}
		newVal := c.value
		c.mu.Unlock()

		c.notify(dependents, Next(newVal), true)
		return
	}

	c.state = StateCompleted
	completeDependents := make([]*Cell[V], 0, len(c.completeCallbacks))
	for d := range c.completeCallbacks {
		completeDependents = append(completeDependents, d)
	}
	upNext := make([]*Cell[V], 0, len(c.nextDeps))
	for u := range c.nextDeps {
		upNext = append(upNext, u)
	}
	upComplete := make([]*Cell[V], 0, len(c.completeDeps))
	for u := range c.completeDeps {
		upComplete = append(upComplete, u)
	}
	finalVal := c.value
	cleanups := c.cleanups

	c.nextDeps = nil
	c.completeDeps = nil
	c.nextCallbacks = nil
	c.completeCallbacks = nil
	c.cleanups = nil
	c.mu.Unlock()

	for _, u := range upNext {
		u.mu.Lock()
		delete(u.nextCallbacks, c)
		u.mu.Unlock()
	}
	for _, u := range upComplete {
		u.mu.Lock()
		delete(u.completeCallbacks, c)
		u.mu.Unlock()
	}

	c.pool.deregister(c)
	c.pool.notifySettle(c, finalVal)

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}

	c.notify(completeDependents, Final(finalVal), false)
}

// notify schedules combine(dependents' view of this update) on each
// dependent's sequential queue — never runs the combine inline, which is
// the core of the serialization boundary described in spec.md §4.5.
func (c *Cell[V]) notify(dependents []*Cell[V], outcome Outcome[V], isNext bool) {
	for _, d := range dependents {
		d := d
		d.mu.Lock()
		var combine CombineFunc[V]
		var ok bool
		if isNext {
			combine, ok = d.nextDeps[c]
		} else {
			combine, ok = d.completeDeps[c]
		}
		d.mu.Unlock()
		if !ok {
			continue
		}
		c.pool.scheduleSequentialCallback(d, func() {
			d.invokeCombine(combine, []DepUpdate[V]{{Cell: c, Outcome: outcome}})
		})
	}
}

// invokeCombine runs a combine callback with panic/error isolation
// (spec.md §7): a failure is routed to the exception handler, the
// dependent cell is left untouched, and the pool's quiescence accounting
// still records the task as complete.
func (c *Cell[V]) invokeCombine(combine CombineFunc[V], deps []DepUpdate[V]) {
	outcome, err := c.safelyRunCombine(combine, deps)
	if err != nil {
		c.pool.reportFailure(newCallbackError(c.id, err, "combine"))
		return
	}
	c.apply(outcome)
}

func (c *Cell[V]) safelyRunCombine(combine CombineFunc[V], deps []DepUpdate[V]) (outcome Outcome[V], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoveredToError(r)
		}
	}()
	outcome = combine(deps)
	return outcome, nil
}

package lattice

import "sort"

// QuiescentResolveCycles finds every closed strongly connected component in
// the subgraph induced by the pool's incomplete cells, resolves each via its
// representative cell's Key.Resolve, and repeats after the next quiescence
// until a pass observes none. Grounded on the teacher's ReactiveGraph
// traversal style (graph.go): explicit stacks, never recursion over cell
// pointers, to keep stack depth independent of graph size.
func (p *Pool[V]) QuiescentResolveCycles() *Future {
	fut := newFuture()
	p.resolveCyclesThen(func(err error) { fut.settle(err) })
	return fut
}

// resolveCyclesThen drives the cycles-only policy via a continuation
// rather than a blocking Wait, so chaining it (QuiescentResolveCell below)
// never ties up a worker-pool slot waiting on another round's result —
// with parallelism 1, a blocking waiter would deadlock against the very
// round it's waiting for.
func (p *Pool[V]) resolveCyclesThen(done func(error)) {
	p.OnQuiescent(func() { p.resolveCyclesRound(done) })
}

func (p *Pool[V]) resolveCyclesRound(done func(error)) {
	sccs := findClosedSCCs(p.QuiescentIncompleteCells())
	if len(sccs) == 0 {
		done(nil)
		return
	}
	for _, scc := range sccs {
		p.resolveSCC(scc)
	}
	p.OnQuiescent(func() { p.resolveCyclesRound(done) })
}

// resolveSCC applies spec.md §4.6's cycle-resolution protocol: sever every
// edge between members first (both directions, both next and complete
// callback sets), then putFinal the value Key.Resolve returned for each
// member it covered. A member the map does not cover is reported via
// ErrCycleUnresolved and left incomplete for a later round.
func (p *Pool[V]) resolveSCC(scc []*Cell[V]) {
	sort.Slice(scc, func(i, j int) bool { return scc[i].id < scc[j].id })
	representative := scc[0]

	resolved := representative.key.Resolve(scc)

	for _, r := range scc {
		for _, c := range scc {
			if r == c {
				continue
			}
			r.removeNextCallbacks(c)
			r.removeCompleteCallbacks(c)
		}
	}

	for _, r := range scc {
		v, ok := resolved[r]
		if !ok {
			p.reportFailure(newCallbackError(r.id, ErrCycleUnresolved, "resolve"))
			continue
		}
		r.put(v, true)
	}

	p.notifyCycleResolved(scc)
}

// QuiescentResolveDefaults applies Key.Fallback to every still-incomplete,
// triggered cell at quiescence, repeating until none remain.
func (p *Pool[V]) QuiescentResolveDefaults() *Future {
	fut := newFuture()
	p.resolveDefaultsThen(func(err error) { fut.settle(err) })
	return fut
}

func (p *Pool[V]) resolveDefaultsThen(done func(error)) {
	p.OnQuiescent(func() { p.resolveDefaultsRound(done) })
}

func (p *Pool[V]) resolveDefaultsRound(done func(error)) {
	var pending []*Cell[V]
	for _, c := range p.QuiescentIncompleteCells() {
		if c.IsTriggered() {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		done(nil)
		return
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].id < pending[j].id })
	representative := pending[0]
	resolved := representative.key.Fallback(pending)

	for _, c := range pending {
		v, ok := resolved[c]
		if !ok {
			continue
		}
		c.put(v, true)
	}

	p.OnQuiescent(func() { p.resolveDefaultsRound(done) })
}

// QuiescentResolveCell is the combined policy: cycles first, then
// defaults, looped until a full round of each produces nothing. Chained
// entirely through continuations (no blocking Wait on a worker goroutine)
// so it never starves a low-parallelism pool.
func (p *Pool[V]) QuiescentResolveCell() *Future {
	fut := newFuture()
	p.resolveCombinedRound(fut)
	return fut
}

func (p *Pool[V]) resolveCombinedRound(fut *Future) {
	p.resolveCyclesThen(func(err error) {
		if err != nil {
			fut.settle(err)
			return
		}
		p.resolveDefaultsThen(func(err error) {
			if err != nil {
				fut.settle(err)
				return
			}
			if p.hasWorkForResolver() {
				p.resolveCombinedRound(fut)
				return
			}
			fut.settle(nil)
		})
	})
}

func (p *Pool[V]) hasWorkForResolver() bool {
	cells := p.QuiescentIncompleteCells()
	if len(findClosedSCCs(cells)) > 0 {
		return true
	}
	for _, c := range cells {
		if c.IsTriggered() {
			return true
		}
	}
	return false
}

// findClosedSCCs runs an iterative Tarjan's algorithm over cells using
// each cell's current next/complete dependency edges restricted to the
// given set, then keeps only the strongly connected components that have
// no edge leaving the component itself — a genuine closed cycle, per
// spec.md §4.6's "no edge leaves the component" requirement. Tarjan alone
// is not enough: it happily groups {A, B} into one SCC even when A also
// depends on an outside, still-incomplete cell C — that dependency must
// settle first, so such an SCC is reported only once nothing in it points
// outside it any more. A singleton is only reported if it has a direct
// self-dependency and nothing else; an isolated cell with no edges at all
// is not a cycle.
func findClosedSCCs[V any](cells []*Cell[V]) [][]*Cell[V] {
	inSet := make(map[*Cell[V]]struct{}, len(cells))
	for _, c := range cells {
		inSet[c] = struct{}{}
	}

	edges := make(map[*Cell[V]][]*Cell[V], len(cells))
	for _, c := range cells {
		c.mu.Lock()
		seen := make(map[*Cell[V]]struct{})
		var neighbors []*Cell[V]
		for d := range c.nextDeps {
			if _, ok := inSet[d]; ok {
				if _, dup := seen[d]; !dup {
					seen[d] = struct{}{}
					neighbors = append(neighbors, d)
				}
			}
		}
		for d := range c.completeDeps {
			if _, ok := inSet[d]; ok {
				if _, dup := seen[d]; !dup {
					seen[d] = struct{}{}
					neighbors = append(neighbors, d)
				}
			}
		}
		c.mu.Unlock()
		edges[c] = neighbors
	}

	t := &tarjan[V]{
		edges:   edges,
		index:   make(map[*Cell[V]]int),
		lowlink: make(map[*Cell[V]]int),
		onStack: make(map[*Cell[V]]bool),
	}
	for _, c := range cells {
		if _, done := t.index[c]; !done {
			t.strongConnect(c)
		}
	}

	var closed [][]*Cell[V]
	for _, scc := range t.result {
		member := make(map[*Cell[V]]struct{}, len(scc))
		for _, c := range scc {
			member[c] = struct{}{}
		}

		hasOutgoingEdge := false
		for _, c := range scc {
			for _, n := range edges[c] {
				if _, ok := member[n]; !ok {
					hasOutgoingEdge = true
					break
				}
			}
			if hasOutgoingEdge {
				break
			}
		}
		if hasOutgoingEdge {
			continue
		}

		if len(scc) == 1 {
			self := scc[0]
			isSelfLoop := false
			for _, n := range edges[self] {
				if n == self {
					isSelfLoop = true
					break
				}
			}
			if !isSelfLoop {
				continue
			}
		}
		closed = append(closed, scc)
	}
	return closed
}

// tarjan holds the bookkeeping for one iterative Tarjan's-SCC pass,
// mirroring graph.go's preference for explicit stacks over recursion so
// stack depth never scales with the dependency graph's size.
type tarjan[V any] struct {
	edges   map[*Cell[V]][]*Cell[V]
	index   map[*Cell[V]]int
	lowlink map[*Cell[V]]int
	onStack map[*Cell[V]]bool
	stack   []*Cell[V]
	counter int
	result  [][]*Cell[V]
}

type tarjanFrame[V any] struct {
	node     *Cell[V]
	children []*Cell[V]
	pos      int
}

func (t *tarjan[V]) strongConnect(start *Cell[V]) {
	var work []*tarjanFrame[V]

	push := func(c *Cell[V]) {
		t.index[c] = t.counter
		t.lowlink[c] = t.counter
		t.counter++
		t.stack = append(t.stack, c)
		t.onStack[c] = true
		work = append(work, &tarjanFrame[V]{node: c, children: t.edges[c]})
	}

	push(start)

	for len(work) > 0 {
		frame := work[len(work)-1]

		if frame.pos < len(frame.children) {
			child := frame.children[frame.pos]
			frame.pos++

			if _, visited := t.index[child]; !visited {
				push(child)
				continue
			}
			if t.onStack[child] {
				if t.index[child] < t.lowlink[frame.node] {
					t.lowlink[frame.node] = t.index[child]
				}
			}
			continue
		}

		work = work[:len(work)-1]
		if len(work) > 0 {
			parent := work[len(work)-1]
			if t.lowlink[frame.node] < t.lowlink[parent.node] {
				t.lowlink[parent.node] = t.lowlink[frame.node]
			}
		}

		if t.lowlink[frame.node] == t.index[frame.node] {
			var scc []*Cell[V]
			for {
				n := len(t.stack) - 1
				member := t.stack[n]
				t.stack = t.stack[:n]
				t.onStack[member] = false
				scc = append(scc, member)
				if member == frame.node {
					break
				}
			}
			t.result = append(t.result, scc)
		}
	}
}

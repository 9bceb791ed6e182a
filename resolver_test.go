package lattice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pumped-fn/lattice/internal/latticetest"
)

func identityCombine(deps []DepUpdate[latticetest.IntSet]) Outcome[latticetest.IntSet] {
	v, _ := deps[0].Outcome.Get()
	return Next(v)
}

// testConstKey resolves and falls back every cell to the same fixed value,
// used by the "cycle with non-trivial resolve" scenario in spec.md §8.
//
// It is defined here rather than in latticetest: a Key
// implementation must reference the concrete Cell type, and this file is
// an internal (white-box) test of package lattice, so importing a helper
// package that itself imports lattice would create an import cycle.
type testConstKey[V any] struct {
	Value V
}

func (k testConstKey[V]) Resolve(cells []*Cell[V]) map[*Cell[V]]V {
	out := make(map[*Cell[V]]V, len(cells))
	for _, c := range cells {
		out[c] = k.Value
	}
	return out
}

func (k testConstKey[V]) Fallback(cells []*Cell[V]) map[*Cell[V]]V {
	return k.Resolve(cells)
}

func TestTwoCellCycleResolvesToBottomUnderDefaultKey(t *testing.T) {
	pool := NewPool[latticetest.IntSet](4, nil)

	var a, b *Cell[latticetest.IntSet]
	a = pool.MkCell(nil, latticetest.PowersetInt{}, func(c *Completer[latticetest.IntSet]) Outcome[latticetest.IntSet] {
		c.Self().When(b, identityCombine)
		return NoOutcome[latticetest.IntSet]()
	})
	b = pool.MkCell(nil, latticetest.PowersetInt{}, func(c *Completer[latticetest.IntSet]) Outcome[latticetest.IntSet] {
		c.Self().When(a, identityCombine)
		return NoOutcome[latticetest.IntSet]()
	})

	a.Trigger()
	b.Trigger()

	future := pool.QuiescentResolveCycles()
	require.NoError(t, future.Wait())

	require.Equal(t, StateCompleted, a.State())
	require.Equal(t, StateCompleted, b.State())
	require.Empty(t, a.GetResult())
	require.Empty(t, b.GetResult())
}

func TestTwoCellCycleWithNonTrivialResolve(t *testing.T) {
	pool := NewPool[latticetest.IntSet](4, nil)
	key := testConstKey[latticetest.IntSet]{Value: latticetest.NewIntSet(42)}

	var a, b *Cell[latticetest.IntSet]
	a = pool.MkCell(key, latticetest.PowersetInt{}, func(c *Completer[latticetest.IntSet]) Outcome[latticetest.IntSet] {
		c.Self().When(b, identityCombine)
		return NoOutcome[latticetest.IntSet]()
	})
	b = pool.MkCell(key, latticetest.PowersetInt{}, func(c *Completer[latticetest.IntSet]) Outcome[latticetest.IntSet] {
		c.Self().When(a, identityCombine)
		return NoOutcome[latticetest.IntSet]()
	})

	a.Trigger()
	b.Trigger()

	future := pool.QuiescentResolveCycles()
	require.NoError(t, future.Wait())

	want := latticetest.NewIntSet(42)
	require.Equal(t, StateCompleted, a.State())
	require.Equal(t, StateCompleted, b.State())
	require.Equal(t, want, a.GetResult())
	require.Equal(t, want, b.GetResult())
}

func TestQuiescentResolveDefaultsSettlesUnreachedCells(t *testing.T) {
	pool := NewPool[int](4, nil)

	stuck := pool.MkCell(nil, latticetest.MaxInt{}, func(c *Completer[int]) Outcome[int] {
		c.Put(3)
		return NoOutcome[int]()
	})
	stuck.Trigger()

	future := pool.QuiescentResolveDefaults()
	require.NoError(t, future.Wait())

	require.Equal(t, StateCompleted, stuck.State())
	require.Equal(t, 3, stuck.GetResult())
}

// TestNestedCycleResolvesInnerSCCBeforeOuter wires a {C, D} cycle as an
// external dependency of an {A, B} cycle (A.When(C, ...) on top of the
// mutual A<->B wiring). {C, D} has no edge leaving it, so it is the only
// closed SCC in the first round; {A, B} is not closed yet, since A still
// points at the still-incomplete C. Once {C, D} resolves under its
// ConstKey, C's value propagates into A through the ordinary dependency
// callback, and only then does {A, B} become closed. A resolver that
// treats every Tarjan SCC as closed would resolve {A, B} in the same
// round as {C, D}, freezing A and B at their pre-propagation bottom
// value instead of the value {C, D} resolved to.
func TestNestedCycleResolvesInnerSCCBeforeOuter(t *testing.T) {
	pool := NewPool[latticetest.IntSet](4, nil)
	innerKey := testConstKey[latticetest.IntSet]{Value: latticetest.NewIntSet(99)}

	var a, b, c, d *Cell[latticetest.IntSet]
	c = pool.MkCell(innerKey, latticetest.PowersetInt{}, func(comp *Completer[latticetest.IntSet]) Outcome[latticetest.IntSet] {
		comp.Self().When(d, identityCombine)
		return NoOutcome[latticetest.IntSet]()
	})
	d = pool.MkCell(innerKey, latticetest.PowersetInt{}, func(comp *Completer[latticetest.IntSet]) Outcome[latticetest.IntSet] {
		comp.Self().When(c, identityCombine)
		return NoOutcome[latticetest.IntSet]()
	})

	a = pool.MkCell(nil, latticetest.PowersetInt{}, func(comp *Completer[latticetest.IntSet]) Outcome[latticetest.IntSet] {
		comp.Self().When(b, identityCombine)
		comp.Self().When(c, identityCombine)
		return NoOutcome[latticetest.IntSet]()
	})
	b = pool.MkCell(nil, latticetest.PowersetInt{}, func(comp *Completer[latticetest.IntSet]) Outcome[latticetest.IntSet] {
		comp.Self().When(a, identityCombine)
		return NoOutcome[latticetest.IntSet]()
	})

	a.Trigger()
	b.Trigger()
	c.Trigger()
	d.Trigger()

	future := pool.QuiescentResolveCycles()
	require.NoError(t, future.Wait())

	want := latticetest.NewIntSet(99)
	require.Equal(t, StateCompleted, a.State())
	require.Equal(t, StateCompleted, b.State())
	require.Equal(t, StateCompleted, c.State())
	require.Equal(t, StateCompleted, d.State())
	require.Equal(t, want, c.GetResult())
	require.Equal(t, want, d.GetResult())
	require.Equal(t, want, a.GetResult(), "A must absorb C's resolved value before {A, B} is treated as closed")
	require.Equal(t, want, b.GetResult(), "B must absorb A's propagated value before {A, B} is treated as closed")
}

// TestSelfLoopCellResolvesAsClosedSCC exercises a cell that depends on
// itself: the singleton-SCC special case in findClosedSCCs must still
// treat a genuine self-loop as closed even after the outgoing-edge check
// was added alongside it.
func TestSelfLoopCellResolvesAsClosedSCC(t *testing.T) {
	pool := NewPool[latticetest.IntSet](4, nil)
	key := testConstKey[latticetest.IntSet]{Value: latticetest.NewIntSet(5)}

	var a *Cell[latticetest.IntSet]
	a = pool.MkCell(key, latticetest.PowersetInt{}, func(comp *Completer[latticetest.IntSet]) Outcome[latticetest.IntSet] {
		comp.Self().When(comp.Self(), identityCombine)
		return NoOutcome[latticetest.IntSet]()
	})
	a.Trigger()

	future := pool.QuiescentResolveCycles()
	require.NoError(t, future.Wait())

	require.Equal(t, StateCompleted, a.State())
	require.Equal(t, latticetest.NewIntSet(5), a.GetResult())
}

func TestQuiescentResolveCellCombinesCyclesAndDefaults(t *testing.T) {
	pool := NewPool[latticetest.IntSet](4, nil)

	var a, b *Cell[latticetest.IntSet]
	a = pool.MkCell(nil, latticetest.PowersetInt{}, func(c *Completer[latticetest.IntSet]) Outcome[latticetest.IntSet] {
		c.Self().When(b, identityCombine)
		return NoOutcome[latticetest.IntSet]()
	})
	b = pool.MkCell(nil, latticetest.PowersetInt{}, func(c *Completer[latticetest.IntSet]) Outcome[latticetest.IntSet] {
		c.Self().When(a, identityCombine)
		return NoOutcome[latticetest.IntSet]()
	})
	stray := pool.MkCell(nil, latticetest.PowersetInt{}, func(c *Completer[latticetest.IntSet]) Outcome[latticetest.IntSet] {
		c.Put(latticetest.NewIntSet(7))
		return NoOutcome[latticetest.IntSet]()
	})

	a.Trigger()
	b.Trigger()
	stray.Trigger()

	future := pool.QuiescentResolveCell()
	require.NoError(t, future.Wait())

	require.Equal(t, StateCompleted, a.State())
	require.Equal(t, StateCompleted, b.State())
	require.Equal(t, StateCompleted, stray.State())
	require.Equal(t, latticetest.NewIntSet(7), stray.GetResult())
}

package lattice

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pumped-fn/lattice/internal/latticetest"
)

func quiesce[V any](pool *Pool[V]) {
	done := make(chan struct{})
	pool.OnQuiescent(func() { close(done) })
	<-done
}

func TestLinearChainPropagation(t *testing.T) {
	pool := NewPool[int](4, nil)

	a := pool.MkCell(nil, latticetest.MaxInt{}, func(c *Completer[int]) Outcome[int] {
		return Final(1)
	})
	b := pool.MkCell(nil, latticetest.MaxInt{}, func(c *Completer[int]) Outcome[int] {
		c.Self().When(a, func(deps []DepUpdate[int]) Outcome[int] {
			v, _ := deps[0].Outcome.Get()
			return Final(v + 1)
		})
		return NoOutcome[int]()
	})
	cc := pool.MkCell(nil, latticetest.MaxInt{}, func(c *Completer[int]) Outcome[int] {
		c.Self().When(b, func(deps []DepUpdate[int]) Outcome[int] {
			v, _ := deps[0].Outcome.Get()
			return Final(v + 1)
		})
		return NoOutcome[int]()
	})

	cc.Trigger()
	quiesce(pool)

	require.Equal(t, 1, a.GetResult())
	require.Equal(t, 2, b.GetResult())
	require.Equal(t, 3, cc.GetResult())
	require.Equal(t, StateCompleted, a.State())
	require.Equal(t, StateCompleted, b.State())
	require.Equal(t, StateCompleted, cc.State())
}

func TestDiamondPropagation(t *testing.T) {
	pool := NewPool[int](4, nil)

	source := pool.MkCell(nil, latticetest.MaxInt{}, func(c *Completer[int]) Outcome[int] {
		return Final(10)
	})
	left := pool.MkCell(nil, latticetest.MaxInt{}, func(c *Completer[int]) Outcome[int] {
		c.Self().When(source, func(deps []DepUpdate[int]) Outcome[int] {
			v, _ := deps[0].Outcome.Get()
			return Final(v + 1)
		})
		return NoOutcome[int]()
	})
	right := pool.MkCell(nil, latticetest.MaxInt{}, func(c *Completer[int]) Outcome[int] {
		c.Self().When(source, func(deps []DepUpdate[int]) Outcome[int] {
			v, _ := deps[0].Outcome.Get()
			return Final(v + 2)
		})
		return NoOutcome[int]()
	})
	sink := pool.MkCell(nil, latticetest.MaxInt{}, func(c *Completer[int]) Outcome[int] {
		c.Self().When(left, func(deps []DepUpdate[int]) Outcome[int] {
			v, _ := deps[0].Outcome.Get()
			return Next(v)
		})
		c.Self().When(right, func(deps []DepUpdate[int]) Outcome[int] {
			v, _ := deps[0].Outcome.Get()
			return Next(v)
		})
		return NoOutcome[int]()
	})

	sink.Trigger()
	quiesce(pool)

	require.Equal(t, 11, left.GetResult())
	require.Equal(t, 12, right.GetResult())
	require.Equal(t, 12, sink.GetResult(), "sink joins both branches under max and keeps the larger")
	require.Equal(t, StateActive, sink.State(), "sink never receives a Final outcome of its own")
}

func TestMonotoneGrowthSuppressesNoOpUpdates(t *testing.T) {
	pool := NewPool[int](2, nil)

	c := pool.MkCell(nil, latticetest.MaxInt{}, func(comp *Completer[int]) Outcome[int] {
		return Next(5)
	})
	c.Trigger()
	quiesce(pool)
	require.Equal(t, 5, c.GetResult())

	comp := &Completer[int]{cell: c}
	comp.Put(3)
	require.Equal(t, 5, c.GetResult(), "joining a smaller value must not decrease or re-notify")

	comp.Put(9)
	require.Equal(t, 9, c.GetResult())
}

func TestExceptionIsolationDoesNotAdvanceCell(t *testing.T) {
	var reported []error
	var mu sync.Mutex
	pool := NewPool[int](2, func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	})

	c := pool.MkCell(nil, latticetest.MaxInt{}, func(comp *Completer[int]) Outcome[int] {
		panic("boom")
	})
	c.Trigger()
	quiesce(pool)

	require.Equal(t, StateActive, c.State(), "a failed init must not advance the cell past Active")
	require.Equal(t, 0, c.GetResult())
	require.Len(t, reported, 1)

	var cbErr *CallbackError
	require.ErrorAs(t, reported[0], &cbErr)
	require.Equal(t, "init", cbErr.Context)
}

func TestOnCleanupRunsInReverseOrderOnCompletion(t *testing.T) {
	pool := NewPool[int](2, nil)

	var order []int
	c := pool.MkCell(nil, latticetest.MaxInt{}, func(comp *Completer[int]) Outcome[int] {
		comp.OnCleanup(func() { order = append(order, 1) })
		comp.OnCleanup(func() { order = append(order, 2) })
		comp.OnCleanup(func() { order = append(order, 3) })
		return Final(1)
	})
	c.Trigger()
	quiesce(pool)

	require.Equal(t, []int{3, 2, 1}, order)
}

func TestWhenAfterDependencyAlreadyCompletedStillDelivers(t *testing.T) {
	pool := NewPool[int](2, nil)

	upstream := pool.MkCell(nil, latticetest.MaxInt{}, func(comp *Completer[int]) Outcome[int] {
		return Final(4)
	})
	upstream.Trigger()
	quiesce(pool)
	require.Equal(t, StateCompleted, upstream.State())

	downstream := pool.MkCell(nil, latticetest.MaxInt{}, nil)
	downstream.When(upstream, func(deps []DepUpdate[int]) Outcome[int] {
		v, _ := deps[0].Outcome.Get()
		return Final(v * 2)
	})
	quiesce(pool)

	require.Equal(t, 8, downstream.GetResult())
}

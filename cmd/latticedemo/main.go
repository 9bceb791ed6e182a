// Command latticedemo walks through the end-to-end scenarios from the
// engine's design notes: a linear chain, a two-cell cycle resolved under
// the default key, and the same cycle resolved under a custom key.
package main

import (
	"fmt"
	"os"

	"github.com/pumped-fn/lattice"
	"github.com/pumped-fn/lattice/internal/latticetest"
)

func main() {
	linearChain()
	cycleWithDefaultKey()
	cycleWithCustomKey()
}

func linearChain() {
	fmt.Println("== linear chain ==")

	pool := lattice.NewPool[int](4, func(err error) {
		fmt.Fprintf(os.Stderr, "callback failed: %v\n", err)
	})

	a := pool.MkCell(nil, latticetest.MaxInt{}, func(c *lattice.Completer[int]) lattice.Outcome[int] {
		fmt.Println("initializing a")
		return lattice.Final(1)
	}).WithCellName("a")

	b := pool.MkCell(nil, latticetest.MaxInt{}, func(c *lattice.Completer[int]) lattice.Outcome[int] {
		c.Self().When(a, func(deps []lattice.DepUpdate[int]) lattice.Outcome[int] {
			v, _ := deps[0].Outcome.Get()
			return lattice.Final(v + 1)
		})
		return lattice.NoOutcome[int]()
	}).WithCellName("b")

	cc := pool.MkCell(nil, latticetest.MaxInt{}, func(c *lattice.Completer[int]) lattice.Outcome[int] {
		c.Self().When(b, func(deps []lattice.DepUpdate[int]) lattice.Outcome[int] {
			v, _ := deps[0].Outcome.Get()
			return lattice.Final(v + 1)
		})
		return lattice.NoOutcome[int]()
	}).WithCellName("c")

	cc.Trigger()

	done := make(chan struct{})
	pool.OnQuiescent(func() { close(done) })
	<-done

	fmt.Printf("a = %d, b = %d, c = %d\n\n", a.GetResult(), b.GetResult(), cc.GetResult())
}

func cycleWithDefaultKey() {
	fmt.Println("== two-cell cycle, default key ==")
	runCycle(nil, "resolved to the bottom element, since neither cell ever emitted a value")
}

func cycleWithCustomKey() {
	fmt.Println("== two-cell cycle, custom key ==")
	key := constKey[latticetest.IntSet]{Value: latticetest.NewIntSet(1)}
	runCycle(key, "resolved to {1}, the value the key supplied")
}

// constKey resolves and falls back every cell to the same fixed value.
type constKey[V any] struct {
	Value V
}

func (k constKey[V]) Resolve(cells []*lattice.Cell[V]) map[*lattice.Cell[V]]V {
	out := make(map[*lattice.Cell[V]]V, len(cells))
	for _, c := range cells {
		out[c] = k.Value
	}
	return out
}

func (k constKey[V]) Fallback(cells []*lattice.Cell[V]) map[*lattice.Cell[V]]V {
	return k.Resolve(cells)
}

func runCycle(key lattice.Key[latticetest.IntSet], note string) {
	pool := lattice.NewPool[latticetest.IntSet](4, func(err error) {
		fmt.Fprintf(os.Stderr, "callback failed: %v\n", err)
	})

	identity := func(deps []lattice.DepUpdate[latticetest.IntSet]) lattice.Outcome[latticetest.IntSet] {
		v, _ := deps[0].Outcome.Get()
		return lattice.Next(v)
	}

	var x, y *lattice.Cell[latticetest.IntSet]
	x = pool.MkCell(key, latticetest.PowersetInt{}, func(c *lattice.Completer[latticetest.IntSet]) lattice.Outcome[latticetest.IntSet] {
		c.Self().When(y, identity)
		return lattice.NoOutcome[latticetest.IntSet]()
	}).WithCellName("x")
	y = pool.MkCell(key, latticetest.PowersetInt{}, func(c *lattice.Completer[latticetest.IntSet]) lattice.Outcome[latticetest.IntSet] {
		c.Self().When(x, identity)
		return lattice.NoOutcome[latticetest.IntSet]()
	}).WithCellName("y")

	x.Trigger()
	y.Trigger()

	if err := pool.QuiescentResolveCycles().Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "cycle resolution failed: %v\n", err)
		return
	}

	fmt.Printf("x = %v, y = %v (%s)\n\n", x.GetResult(), y.GetResult(), note)
}

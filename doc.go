// Package lattice provides a reactive concurrent dataflow engine: cells
// whose values are refined monotonically under a join-semilattice, wired
// into a dependency graph that may contain cycles, with a resolver that
// breaks those cycles once the pool goes quiet.
//
// # Overview
//
// Three concepts make up the core:
//
//  1. Cells: units of computation holding a lattice-valued result
//  2. Pool: the worker pool that runs cell callbacks and tracks quiescence
//  3. Key: the per-cell policy for resolving cycles and assigning fallbacks
//
// # Basic Usage
//
// A Lattice describes how a cell's value can grow. A minimal one over
// integers, ordered by max:
//
//	type maxInt struct{}
//
//	func (maxInt) Bottom() int                 { return 0 }
//	func (maxInt) Join(a, b int) int           { if a > b { return a }; return b }
//	func (maxInt) Equals(a, b int) bool        { return a == b }
//
// Create a pool and a couple of cells:
//
//	pool := lattice.NewPool[int](4, func(err error) {
//	    log.Printf("callback failed: %v", err)
//	})
//
//	a := pool.MkCell(nil, maxInt{}, func(c *lattice.Completer[int]) lattice.Outcome[int] {
//	    return lattice.Final(3)
//	})
//
//	b := pool.MkCell(nil, maxInt{}, func(c *lattice.Completer[int]) lattice.Outcome[int] {
//	    c.Self().When(a, func(deps []lattice.DepUpdate[int]) lattice.Outcome[int] {
//	        v, _ := deps[0].Outcome.Get()
//	        return lattice.Final(v + 1)
//	    })
//	    return lattice.NoOutcome[int]()
//	})
//
//	b.Trigger()
//
// # Dependency Wiring
//
// When is called from inside an init (or later, from a combine callback)
// to subscribe to another cell's updates:
//
//	c.Self().When(other, func(deps []lattice.DepUpdate[int]) lattice.Outcome[int] {
//	    v, ok := deps[0].Outcome.Get()
//	    if !ok {
//	        return lattice.NoOutcome[int]()
//	    }
//	    return lattice.Next(v)
//	})
//
// Each firing delivers a one-element slice containing just the dependency
// that changed — combine reads deps[0], not a fold over every live
// dependency.
//
// # Outcomes
//
// A callback returns an Outcome: Next(v) joins v in without completing the
// cell, Final(v) joins v in and completes it, NoOutcome means no change.
//
//	return lattice.Next(partial)
//	return lattice.Final(answer)
//	return lattice.NoOutcome[int]()
//
// # Quiescence and Cycle Resolution
//
// Dependency graphs built with When may contain cycles. Once the pool has
// no in-flight tasks, QuiescentResolveCell finds any closed cycles, asks
// each cycle's Key to resolve them, then falls back for anything still
// incomplete:
//
//	future := pool.QuiescentResolveCell()
//	if err := future.Wait(); err != nil {
//	    log.Printf("resolution failed: %v", err)
//	}
//
// A custom Key supplies the resolution and fallback policy:
//
//	type topKey struct{}
//
//	func (topKey) Resolve(cells []*lattice.Cell[int]) map[*lattice.Cell[int]]int {
//	    out := make(map[*lattice.Cell[int]]int, len(cells))
//	    for _, c := range cells {
//	        out[c] = c.GetResult()
//	    }
//	    return out
//	}
//
//	func (topKey) Fallback(cells []*lattice.Cell[int]) map[*lattice.Cell[int]]int {
//	    return topKey{}.Resolve(cells)
//	}
//
// lattice.DefaultKey[int]{} implements exactly this "settle at current
// value" policy, and is used when MkCell is given a nil key.
//
// # Cleanup
//
// Register cleanup functions to run once, in reverse order, when a cell
// completes:
//
//	a := pool.MkCell(nil, maxInt{}, func(c *lattice.Completer[int]) lattice.Outcome[int] {
//	    conn := openConnection()
//	    c.OnCleanup(func() { conn.Close() })
//	    return lattice.Final(conn.Value())
//	})
//
// # Extensions
//
// Extensions observe cell settlement and cycle resolution without
// altering either:
//
//	pool := lattice.NewPool[int](4, onErr,
//	    lattice.WithExtension[int](extensions.NewLoggingExtension[int](nil)),
//	)
//
// # Shutdown
//
// Shutdown stops accepting new top-level submissions through Execute and
// waits for in-flight work to finish, or for ctx to expire first:
//
//	if err := pool.Shutdown(ctx); err != nil {
//	    log.Printf("shutdown: %v", err)
//	}
//
// # Thread Safety
//
// Every exported method on Pool and Cell is safe to call concurrently,
// except Pool.AddExtension, which is a setup-time call that must not run
// concurrently with other work on the pool.
package lattice

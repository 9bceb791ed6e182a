package lattice

// Completer is the privileged write handle for a cell, handed to its
// InitFunc exactly once (spec.md §4.2). A rename of the teacher's
// Controller[T] — same "hidden handle carrying write authority" shape,
// narrowed to the two operations a lattice cell actually needs: put and
// putFinal.
type Completer[V any] struct {
	cell *Cell[V]
}

// Put joins v into the cell under the lattice's join, as a non-final
// refinement.
func (c *Completer[V]) Put(v V) {
	c.cell.put(v, false)
}

// PutFinal joins v into the cell and transitions it to Completed. The
// first Final outcome wins; later calls (from this completer or from a
// combine callback returning Final) are silently ignored.
func (c *Completer[V]) PutFinal(v V) {
	c.cell.put(v, true)
}

// Self returns the cell this completer writes to, for read access (e.g.
// Self().GetResult()) and for wiring When() from within init.
func (c *Completer[V]) Self() *Cell[V] {
	return c.cell
}

// OnCleanup registers a function to run once, in reverse-registration
// order, when the cell transitions to Completed — generalized from the
// teacher's ResolveCtx.OnCleanup (context.go) from "resource disposal on
// scope teardown" to "disposal on cell completion", since a Cell has no
// scope-wide teardown of its own.
func (c *Completer[V]) OnCleanup(fn func()) {
	c.cell.mu.Lock()
	defer c.cell.mu.Unlock()
	if c.cell.state == StateCompleted {
		return
	}
	c.cell.cleanups = append(c.cell.cleanups, fn)
}

package lattice

// Lattice supplies the join-semilattice operations a Cell's value type must
// provide: a bottom element, a commutative/associative/idempotent join that
// never decreases either operand, and equality used to detect no-op updates.
type Lattice[V any] interface {
	// Bottom is the value a cell starts at before any update.
	Bottom() V
	// Join merges a and b; the result must be >= a and >= b in lattice order.
	Join(a, b V) V
	// Equals reports whether a and b are the same lattice element.
	Equals(a, b V) bool
}

// Key supplies the per-cell policies invoked by the cycle resolver: how to
// resolve a closed strongly-connected component, and how to assign a
// fallback value to a cell that is triggered but never completes.
type Key[V any] interface {
	// Resolve is invoked once per detected closed SCC; it must return a
	// terminal value for every cell passed to it.
	Resolve(cells []*Cell[V]) map[*Cell[V]]V
	// Fallback is invoked by the defaults resolver at quiescence for every
	// triggered, incomplete cell. Under QuiescentResolveCell, closed SCCs
	// have already been resolved by then; QuiescentResolveDefaults alone
	// does not exclude cycle members.
	Fallback(cells []*Cell[V]) map[*Cell[V]]V
}

// DefaultKey implements both Resolve and Fallback as "assign the cell's
// current value" — the policy spec.md §6 describes as the default used
// when no application-specific Key is supplied.
type DefaultKey[V any] struct{}

// Resolve assigns each cell its own current value.
func (DefaultKey[V]) Resolve(cells []*Cell[V]) map[*Cell[V]]V {
	out := make(map[*Cell[V]]V, len(cells))
	for _, c := range cells {
		out[c] = c.GetResult()
	}
	return out
}

// Fallback assigns each cell its own current value.
func (DefaultKey[V]) Fallback(cells []*Cell[V]) map[*Cell[V]]V {
	out := make(map[*Cell[V]]V, len(cells))
	for _, c := range cells {
		out[c] = c.GetResult()
	}
	return out
}

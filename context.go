package lattice

// AnyCell is the type-erased view of a Cell[V] for any V, the way the
// teacher's AnyExecutor let graph.go and the debug extension traverse a
// scope without committing to a concrete type parameter. Every Cell[V]
// satisfies this automatically through its ID/Name/State methods; it
// exists so the pool registry and the graph-debug extension can hold and
// render cells of arbitrary value types side by side.
type AnyCell interface {
	ID() string
	Name() string
	State() State
}

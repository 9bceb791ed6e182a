package lattice

// Extension hooks into a pool's lifecycle. Narrowed from the teacher's
// Extension interface — which wrapped every resolve/update operation plus
// a flow-execution lifecycle this module has no equivalent of — down to
// the two events a dataflow pool actually produces: a cell settling at a
// final value, and the resolver closing out a cycle.
type Extension[V any] interface {
	Name() string
	OnCellSettle(cell *Cell[V], value V)
	OnCycleResolved(cells []*Cell[V])
}

// BaseExtension gives embedders no-op defaults for both hooks, the way the
// teacher's BaseExtension did for its wider hook set.
type BaseExtension[V any] struct {
	ExtensionName string
}

func (e BaseExtension[V]) Name() string { return e.ExtensionName }

func (e BaseExtension[V]) OnCellSettle(cell *Cell[V], value V) {}

func (e BaseExtension[V]) OnCycleResolved(cells []*Cell[V]) {}

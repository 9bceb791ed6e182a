package lattice

import "sync"

// CellRegistry is a pool's id -> cell lookup table, adapted from the
// teacher's TypeSafeCache[T] (same sync.Map-backed shape, swapping an
// executor key for a cell id) but holding the type-erased AnyCell view
// rather than a single concrete type, so a dashboard extension can walk
// cells from pools of different value types uniformly.
type CellRegistry struct {
	data sync.Map
}

func newCellRegistry() *CellRegistry {
	return &CellRegistry{}
}

func (r *CellRegistry) store(c AnyCell) {
	r.data.Store(c.ID(), c)
}

func (r *CellRegistry) delete(id string) {
	r.data.Delete(id)
}

// Load looks up a cell by id.
func (r *CellRegistry) Load(id string) (AnyCell, bool) {
	v, ok := r.data.Load(id)
	if !ok {
		return nil, false
	}
	return v.(AnyCell), true
}

// Range visits every registered cell; fn returning false stops iteration.
func (r *CellRegistry) Range(fn func(AnyCell) bool) {
	r.data.Range(func(_, value any) bool {
		return fn(value.(AnyCell))
	})
}

// Size returns the number of currently registered cells.
func (r *CellRegistry) Size() int {
	count := 0
	r.data.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

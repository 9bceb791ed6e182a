package lattice

import (
	"testing"

	"github.com/pumped-fn/lattice/internal/latticetest"
)

func TestDefaultKeyResolveAssignsCurrentValue(t *testing.T) {
	pool := NewPool[int](2, nil)
	c := pool.MkCell(nil, latticetest.MaxInt{}, func(comp *Completer[int]) Outcome[int] {
		return Next(7)
	})
	c.Trigger()

	done := make(chan struct{})
	pool.OnQuiescent(func() { close(done) })
	<-done

	if got := c.GetResult(); got != 7 {
		t.Fatalf("GetResult() = %v, want 7", got)
	}

	key := DefaultKey[int]{}
	resolved := key.Resolve([]*Cell[int]{c})
	if resolved[c] != 7 {
		t.Fatalf("Resolve assigned %v, want 7", resolved[c])
	}

	fallback := key.Fallback([]*Cell[int]{c})
	if fallback[c] != 7 {
		t.Fatalf("Fallback assigned %v, want 7", fallback[c])
	}
}

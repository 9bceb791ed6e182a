package lattice

import "sync"

// Future is the minimal single-value-once broadcast handle the cycle
// resolver returns: callers await Done() the way notorious-go-sync's
// Operation exposes Ready()/Completed() channels, without pulling in a
// general-purpose promise library (spec.md §1 Non-goals: "Not a general
// future/promise library").
type Future struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done returns a channel that closes once the underlying work settles.
// The channel closes exactly once and remains closed thereafter; multiple
// goroutines may safely wait on it.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the error the work settled with, if any. Only meaningful
// after Done() has closed.
func (f *Future) Err() error {
	return f.err
}

// settle marks the future complete. Safe to call multiple times;
// subsequent calls are no-ops, matching notorious-go-sync's Complete().
func (f *Future) settle(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the future settles and returns its error.
func (f *Future) Wait() error {
	<-f.done
	return f.err
}

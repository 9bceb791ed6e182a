package lattice

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrPoolShutdown is returned by Execute once Shutdown has been called;
	// in-flight work still runs to completion.
	ErrPoolShutdown = errors.New("lattice: pool is shut down")
	// ErrCellCompleted names the condition of a cell that is already
	// completed. No function in this package returns it.
	ErrCellCompleted = errors.New("lattice: cell already completed")
	// ErrCellNotTriggered names the condition of a cell whose init has not
	// been triggered. No function in this package returns it.
	ErrCellNotTriggered = errors.New("lattice: cell has not been triggered")
	// ErrCycleUnresolved is the Cause of the CallbackError (Context
	// "resolve") sent to the pool's exception handler when a closed SCC's
	// Key.Resolve did not cover every member. The resolver's Future does
	// not settle with it.
	ErrCycleUnresolved = errors.New("lattice: key.Resolve left cycle members incomplete")
)

// CallbackError wraps a non-fatal failure from user code (a cell's init or
// a combine callback) with enough context to route to the pool's exception
// handler without losing the origin. A rename of the teacher's
// ResolveError, generalized from "resolving an executor" to "running a
// cell callback".
type CallbackError struct {
	CellID     string
	Cause      error
	Context    string // "init", "combine", "resolve", or "pool"
	StackTrace []byte
}

func (e *CallbackError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("lattice: callback error in cell %s during %s: %v", e.CellID, e.Context, e.Cause)
	}
	return fmt.Sprintf("lattice: callback error in cell %s: %v", e.CellID, e.Cause)
}

func (e *CallbackError) Unwrap() error {
	return e.Cause
}

// newCallbackError captures a stack trace at the point of failure, the way
// CreateResolveError did for the teacher's resolution errors.
func newCallbackError(cellID string, cause error, context string) *CallbackError {
	return &CallbackError{
		CellID:     cellID,
		Cause:      cause,
		Context:    context,
		StackTrace: debug.Stack(),
	}
}

// recoveredToError normalizes a recover() value into an error, so a
// panicking init or combine callback is routed through the same
// non-fatal exception-handler path as a returned error (spec.md §7).
func recoveredToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}

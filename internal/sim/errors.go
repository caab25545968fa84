package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEvent is returned by Step when the total propensity is zero.
	ErrNoEvent = errors.New("sim: no event can fire")

	// ErrUnknown is wrapped by every LookupError.
	ErrUnknown = errors.New("sim: unknown identifier")

	// ErrMismatch is returned when a checkpoint was taken from a solver
	// with a different shape.
	ErrMismatch = errors.New("sim: checkpoint does not match solver")

	// ErrPastTime rejects an end time before the current time.
	ErrPastTime = errors.New("sim: end time precedes current time")

	// ErrNotSpatial is returned by mesh accessors on a well-mixed geometry.
	ErrNotSpatial = errors.New("sim: geometry has no mesh elements")

	// ErrNegative rejects negative amounts and concentrations.
	ErrNegative = errors.New("sim: negative amount")

	// ErrMissing is returned when a required collaborator is nil.
	ErrMissing = errors.New("sim: missing collaborator")
)

// LookupError names an identifier the solver does not know.
type LookupError struct {
	Kind string
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("sim: unknown %s %q", e.Kind, e.Name)
}

func (e *LookupError) Unwrap() error { return ErrUnknown }

// SimError wraps a driver failure with the clock at which it happened.
type SimError struct {
	Step    uint64
	Time    float64
	Message string
	Wrapped error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("sim: step %d t=%g: %s", e.Step, e.Time, e.Message)
}

func (e *SimError) Unwrap() error { return e.Wrapped }

// InvariantError reports cached engine state that disagrees with a
// recomputation.
type InvariantError struct {
	KProc      int
	Maintained float64
	Fresh      float64
	Message    string
}

func (e *InvariantError) Error() string {
	if e.KProc >= 0 {
		return fmt.Sprintf("sim: invariant violated at process %d: %s (cached %g, fresh %g)",
			e.KProc, e.Message, e.Maintained, e.Fresh)
	}
	return fmt.Sprintf("sim: invariant violated: %s (maintained %g, fresh %g)",
		e.Message, e.Maintained, e.Fresh)
}

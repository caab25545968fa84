// Package sched selects the next kinetic process to fire. A scheduler
// holds one non-negative propensity per process and draws an index with
// probability proportional to its propensity.
package sched

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnknownScheduler = errors.New("sched: unknown scheduler")
	ErrBadFanout        = errors.New("sched: tree fan-out must be at least 2")
)

// DefaultFanout is the number of children per composition tree node.
const DefaultFanout = 32

// Scheduler keeps the propensity table and its total.
type Scheduler interface {
	Name() string
	// Reset replaces the whole table; its length fixes the process count.
	Reset(props []float64)
	Len() int
	Get(i int) float64
	Set(i int, a float64)
	Total() float64
	// Select maps u in [0, 1) to a process index, or -1 when nothing can
	// fire. Only processes with positive propensity are ever returned.
	Select(u float64) int
	// Resync recomputes all sums from the leaves.
	Resync()
}

// Names lists the canonical scheduler names.
func Names() []string { return []string{"direct", "tree"} }

// New returns a scheduler by name. fanout applies to the tree; zero means
// DefaultFanout.
func New(name string, fanout int) (Scheduler, error) {
	switch name {
	case "", "direct", "ssa":
		return NewDirect(), nil
	case "tree", "composition":
		if fanout == 0 {
			fanout = DefaultFanout
		}
		if fanout < 2 {
			return nil, fmt.Errorf("%w: got %d", ErrBadFanout, fanout)
		}
		return NewTree(fanout), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScheduler, name)
}

func checkProp(i int, a float64) {
	if !(a >= 0) || math.IsInf(a, 1) {
		panic(fmt.Sprintf("sched: invalid propensity %g for process %d", a, i))
	}
}

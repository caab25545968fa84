package sched

import (
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Direct is Gillespie's direct method: a flat table scanned linearly. The
// running total is compensated (Kahan) and snaps to zero when no process
// is left with positive propensity.
type Direct struct {
	props []float64
	total float64
	comp  float64
	npos  int
}

func NewDirect() *Direct { return &Direct{} }

func (d *Direct) Name() string      { return "direct" }
func (d *Direct) Len() int          { return len(d.props) }
func (d *Direct) Get(i int) float64 { return d.props[i] }
func (d *Direct) Total() float64    { return d.total }

func (d *Direct) Reset(props []float64) {
	for i, a := range props {
		checkProp(i, a)
	}
	d.props = slices.Clone(props)
	d.Resync()
}

func (d *Direct) Set(i int, a float64) {
	checkProp(i, a)
	old := d.props[i]
	if old == a {
		return
	}
	d.props[i] = a
	if old > 0 {
		d.npos--
	}
	if a > 0 {
		d.npos++
	}
	if d.npos == 0 {
		d.total, d.comp = 0, 0
		return
	}
	y := (a - old) - d.comp
	t := d.total + y
	d.comp = (t - d.total) - y
	d.total = t
}

func (d *Direct) Resync() {
	d.total = floats.Sum(d.props)
	d.comp = 0
	d.npos = 0
	for _, a := range d.props {
		if a > 0 {
			d.npos++
		}
	}
}

// Select returns the first process whose cumulative propensity reaches
// u*Total. Rounding can leave the target above the final sum; the last
// positive process wins then.
func (d *Direct) Select(u float64) int {
	if d.total <= 0 {
		return -1
	}
	target := u * d.total
	cum := 0.0
	last := -1
	for i, a := range d.props {
		if a <= 0 {
			continue
		}
		cum += a
		last = i
		if cum >= target {
			return i
		}
	}
	return last
}

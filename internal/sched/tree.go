package sched

import (
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Tree is a composition (partial-sum) tree with a fixed fan-out. Level 0
// holds the propensities and the last level holds a single node, the
// total. Every internal node is the sum of its children, so the total is
// a deterministic function of the leaves no matter the update history.
type Tree struct {
	width  int
	levels [][]float64
}

func NewTree(fanout int) *Tree {
	if fanout < 2 {
		fanout = DefaultFanout
	}
	return &Tree{width: fanout, levels: [][]float64{nil, {0}}}
}

func (t *Tree) Name() string      { return "tree" }
func (t *Tree) Fanout() int       { return t.width }
func (t *Tree) Len() int          { return len(t.levels[0]) }
func (t *Tree) Get(i int) float64 { return t.levels[0][i] }
func (t *Tree) Total() float64    { return t.levels[len(t.levels)-1][0] }

// Depth is the number of levels above the leaves.
func (t *Tree) Depth() int { return len(t.levels) - 1 }

func (t *Tree) Reset(props []float64) {
	for i, a := range props {
		checkProp(i, a)
	}
	t.levels = [][]float64{slices.Clone(props)}
	for n := len(props); ; {
		n = max((n+t.width-1)/t.width, 1)
		t.levels = append(t.levels, make([]float64, n))
		if n == 1 {
			break
		}
	}
	t.Resync()
}

func (t *Tree) children(level, node int) []float64 {
	below := t.levels[level-1]
	start := min(node*t.width, len(below))
	end := min(start+t.width, len(below))
	return below[start:end]
}

// Set updates one leaf and the sums on its path to the root.
func (t *Tree) Set(i int, a float64) {
	checkProp(i, a)
	t.levels[0][i] = a
	node := i
	for l := 1; l < len(t.levels); l++ {
		node /= t.width
		t.levels[l][node] = floats.Sum(t.children(l, node))
	}
}

func (t *Tree) Resync() {
	for l := 1; l < len(t.levels); l++ {
		for n := range t.levels[l] {
			t.levels[l][n] = floats.Sum(t.children(l, n))
		}
	}
}

// Select descends from the root, subtracting the sums of skipped
// children. Within a node, the first child with positive sum whose sum
// covers the remaining target is taken; if rounding leaves the target
// uncovered, the last positive child is.
func (t *Tree) Select(u float64) int {
	total := t.Total()
	if total <= 0 {
		return -1
	}
	target := u * total
	node := 0
	for l := len(t.levels) - 1; l > 0; l-- {
		chosen := -1
		base := node * t.width
		for c, v := range t.children(l, node) {
			if v <= 0 {
				continue
			}
			chosen = base + c
			if target <= v {
				break
			}
			target -= v
		}
		if chosen < 0 {
			return -1
		}
		node = chosen
	}
	return node
}

// Package geom describes where molecules live: well-mixed compartments and
// patches, or a tetrahedral mesh partitioned into compartments and triangle
// patches. Both shapes are flattened into volume and surface elements that
// the solver addresses by index.
package geom

import "errors"

var (
	ErrIndexRange       = errors.New("geom: index out of range")
	ErrDuplicateElement = errors.New("geom: element assigned to more than one container")
	ErrDuplicateID      = errors.New("geom: duplicate container id")
	ErrDegenerate       = errors.New("geom: degenerate element")
	ErrUnknownContainer = errors.New("geom: unknown container")
	ErrBadPatch         = errors.New("geom: triangle does not separate the patch compartments")
	ErrNegativeMeasure  = errors.New("geom: negative volume or area")
)

// Comp is a compartment: a named volume carrying volume systems.
type Comp struct {
	ID     string
	Volsys []string
	Vol    float64
}

// Patch is a named surface between an inner and an optional outer
// compartment. OComp is empty when the patch is on the outer boundary.
type Patch struct {
	ID      string
	Surfsys []string
	IComp   string
	OComp   string
	Area    float64
}

// Face links a volume element to a same-compartment neighbour.
type Face struct {
	Elem int
	Area float64
	Dist float64
}

// VolElem is one well-mixed reaction volume: a whole compartment, or a
// single tetrahedron of a mesh.
type VolElem struct {
	Comp  int
	Index int
	Vol   float64
	Faces []Face
}

// SurfElem is a whole patch or one triangle. Inner and Outer are volume
// element indices; Outer is -1 on the boundary.
type SurfElem struct {
	Patch int
	Index int
	Area  float64
	Inner int
	Outer int
}

// Geometry is what the solver needs from a geometry: containers and their
// flattened elements. Spatial reports whether elements are mesh elements
// (tets and triangles) rather than whole containers.
type Geometry interface {
	Comps() []Comp
	Patches() []Patch
	VolElems() []VolElem
	SurfElems() []SurfElem
	Spatial() bool
}

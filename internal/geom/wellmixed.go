package geom

import "fmt"

// WellMixed is a geometry without spatial resolution: each compartment and
// each patch is a single element.
type WellMixed struct {
	comps   []Comp
	patches []Patch
}

func NewWellMixed() *WellMixed { return &WellMixed{} }

func (w *WellMixed) AddComp(id string, vol float64, volsys ...string) error {
	if vol < 0 {
		return fmt.Errorf("%w: compartment %q volume %g", ErrNegativeMeasure, id, vol)
	}
	if w.compIndex(id) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	w.comps = append(w.comps, Comp{ID: id, Vol: vol, Volsys: volsys})
	return nil
}

func (w *WellMixed) AddPatch(id string, area float64, icomp, ocomp string, surfsys ...string) error {
	if area < 0 {
		return fmt.Errorf("%w: patch %q area %g", ErrNegativeMeasure, id, area)
	}
	for _, p := range w.patches {
		if p.ID == id {
			return fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
	}
	if w.compIndex(icomp) < 0 {
		return fmt.Errorf("%w: inner compartment %q of patch %q", ErrUnknownContainer, icomp, id)
	}
	if ocomp != "" && w.compIndex(ocomp) < 0 {
		return fmt.Errorf("%w: outer compartment %q of patch %q", ErrUnknownContainer, ocomp, id)
	}
	w.patches = append(w.patches, Patch{ID: id, Area: area, IComp: icomp, OComp: ocomp, Surfsys: surfsys})
	return nil
}

func (w *WellMixed) compIndex(id string) int {
	for i, c := range w.comps {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (w *WellMixed) Comps() []Comp    { return w.comps }
func (w *WellMixed) Patches() []Patch { return w.patches }
func (w *WellMixed) Spatial() bool    { return false }

func (w *WellMixed) VolElems() []VolElem {
	elems := make([]VolElem, len(w.comps))
	for i, c := range w.comps {
		elems[i] = VolElem{Comp: i, Index: i, Vol: c.Vol}
	}
	return elems
}

func (w *WellMixed) SurfElems() []SurfElem {
	elems := make([]SurfElem, len(w.patches))
	for i, p := range w.patches {
		outer := -1
		if p.OComp != "" {
			outer = w.compIndex(p.OComp)
		}
		elems[i] = SurfElem{Patch: i, Index: i, Area: p.Area, Inner: w.compIndex(p.IComp), Outer: outer}
	}
	return elems
}

// Package model holds the symbolic description of a reaction(-diffusion)
// network: species, volume systems with reactions and diffusion rules, and
// surface systems with surface reactions.
//
// A Model is read-only once handed to the solver; the solver compiles it into
// rule definitions (package statedef) exactly once.
package model

import (
	"errors"
	"fmt"
)

// ErrInvalidModel is wrapped by every validation failure.
var ErrInvalidModel = errors.New("model: invalid model")

// Orient says which compartment's volume species a surface reaction consumes.
type Orient int

const (
	// Outside reactions read volume species from the patch's outer compartment.
	Outside Orient = iota
	// Inside reactions read volume species from the patch's inner compartment.
	Inside
)

func (o Orient) String() string {
	if o == Inside {
		return "inside"
	}
	return "outside"
}

type Species struct {
	ID string
}

// Reac is a volume reaction. Repeated species on one side express
// stoichiometry, so 2A -> B is LHS {A, A}, RHS {B}.
type Reac struct {
	ID  string
	LHS []string
	RHS []string
	K   float64
}

// Order is the number of reactant molecules.
func (r Reac) Order() int { return len(r.LHS) }

// SReac is a surface reaction. At most one of ILHS and OLHS may be set.
type SReac struct {
	ID   string
	ILHS []string
	OLHS []string
	SLHS []string
	IRHS []string
	SRHS []string
	ORHS []string
	K    float64
}

// Orient reports the reaction's orientation; a reaction without volume
// reactants is treated as Outside.
func (r SReac) Orient() Orient {
	if len(r.ILHS) > 0 {
		return Inside
	}
	return Outside
}

func (r SReac) Order() int { return len(r.ILHS) + len(r.OLHS) + len(r.SLHS) }

// Diff moves one ligand species between neighbouring mesh elements.
type Diff struct {
	ID  string
	Lig string
	D   float64
}

type Volsys struct {
	ID    string
	Reacs []Reac
	Diffs []Diff
}

type Surfsys struct {
	ID     string
	SReacs []SReac
}

type Model struct {
	Species []Species
	Volsys  []Volsys
	Surfsys []Surfsys
}

// SpecIndex returns the global index of a species.
func (m *Model) SpecIndex(id string) (int, bool) {
	for i, s := range m.Species {
		if s.ID == id {
			return i, true
		}
	}
	return -1, false
}

// FindVolsys returns the volume system with the given id.
func (m *Model) FindVolsys(id string) (*Volsys, bool) {
	for i := range m.Volsys {
		if m.Volsys[i].ID == id {
			return &m.Volsys[i], true
		}
	}
	return nil, false
}

func (m *Model) FindSurfsys(id string) (*Surfsys, bool) {
	for i := range m.Surfsys {
		if m.Surfsys[i].ID == id {
			return &m.Surfsys[i], true
		}
	}
	return nil, false
}

// Validate checks identifier uniqueness, species references and constant
// signs. Rule ids share one namespace across all systems.
func (m *Model) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil model", ErrInvalidModel)
	}
	specs := make(map[string]struct{}, len(m.Species))
	for _, s := range m.Species {
		if s.ID == "" {
			return fmt.Errorf("%w: empty species id", ErrInvalidModel)
		}
		if _, dup := specs[s.ID]; dup {
			return fmt.Errorf("%w: duplicate species %q", ErrInvalidModel, s.ID)
		}
		specs[s.ID] = struct{}{}
	}

	rules := make(map[string]struct{})
	claim := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%w: empty %s id", ErrInvalidModel, kind)
		}
		if _, dup := rules[id]; dup {
			return fmt.Errorf("%w: duplicate rule id %q", ErrInvalidModel, id)
		}
		rules[id] = struct{}{}
		return nil
	}
	known := func(rule string, lists ...[]string) error {
		for _, l := range lists {
			for _, s := range l {
				if _, ok := specs[s]; !ok {
					return fmt.Errorf("%w: rule %q references unknown species %q", ErrInvalidModel, rule, s)
				}
			}
		}
		return nil
	}

	systems := make(map[string]struct{})
	for _, vs := range m.Volsys {
		if _, dup := systems[vs.ID]; dup || vs.ID == "" {
			return fmt.Errorf("%w: bad or duplicate volume system id %q", ErrInvalidModel, vs.ID)
		}
		systems[vs.ID] = struct{}{}
		for _, r := range vs.Reacs {
			if err := claim("reaction", r.ID); err != nil {
				return err
			}
			if err := known(r.ID, r.LHS, r.RHS); err != nil {
				return err
			}
			if r.K < 0 {
				return fmt.Errorf("%w: reaction %q has negative rate constant", ErrInvalidModel, r.ID)
			}
		}
		for _, d := range vs.Diffs {
			if err := claim("diffusion", d.ID); err != nil {
				return err
			}
			if err := known(d.ID, []string{d.Lig}); err != nil {
				return err
			}
			if d.D < 0 {
				return fmt.Errorf("%w: diffusion %q has negative diffusion constant", ErrInvalidModel, d.ID)
			}
		}
	}
	for _, ss := range m.Surfsys {
		if _, dup := systems[ss.ID]; dup || ss.ID == "" {
			return fmt.Errorf("%w: bad or duplicate surface system id %q", ErrInvalidModel, ss.ID)
		}
		systems[ss.ID] = struct{}{}
		for _, r := range ss.SReacs {
			if err := claim("surface reaction", r.ID); err != nil {
				return err
			}
			if len(r.ILHS) > 0 && len(r.OLHS) > 0 {
				return fmt.Errorf("%w: surface reaction %q consumes from both sides", ErrInvalidModel, r.ID)
			}
			if err := known(r.ID, r.ILHS, r.OLHS, r.SLHS, r.IRHS, r.SRHS, r.ORHS); err != nil {
				return err
			}
			if r.K < 0 {
				return fmt.Errorf("%w: surface reaction %q has negative rate constant", ErrInvalidModel, r.ID)
			}
		}
	}
	return nil
}

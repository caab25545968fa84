package statedef

import "fmt"

// DepFlag marks how a rule's propensity depends on a species.
type DepFlag uint8

const (
	DepNone DepFlag = iota
	// DepStoich means the species appears on the consumed side.
	DepStoich
)

// stoich is one side's compiled species arithmetic, sized to the species
// table.
type stoich struct {
	lhs     []int
	rhs     []int
	upd     []int
	dep     []DepFlag
	updColl []int
	lhsColl []int
}

func newStoich(n int) stoich {
	return stoich{
		lhs: make([]int, n),
		rhs: make([]int, n),
		upd: make([]int, n),
		dep: make([]DepFlag, n),
	}
}

func (s *stoich) finish() {
	for i := range s.lhs {
		s.upd[i] = s.rhs[i] - s.lhs[i]
		if s.lhs[i] != 0 {
			s.dep[i] = DepStoich
			s.lhsColl = append(s.lhsColl, i)
		}
		if s.upd[i] != 0 {
			s.updColl = append(s.updColl, i)
		}
	}
}

// count adds one to dst for every occurrence of a species name.
func (sd *Statedef) count(rule string, dst []int, names []string) error {
	for _, name := range names {
		idx, ok := sd.specIdx[name]
		if !ok {
			return fmt.Errorf("%w: %q in rule %q", ErrUnknownSpecies, name, rule)
		}
		dst[idx]++
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/kmcsim/internal/config"
	"github.com/san-kum/kmcsim/internal/geom"
)

// describe prints the model in reaction notation together with the
// geometry it compiles to.
func describe(w io.Writer, cfg *config.Config) error {
	_, g, err := cfg.Build()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "model: %s\n", cfg.Name)
	fmt.Fprintf(w, "species: %s\n", joinOr(cfg.Species, ", ", "-"))

	for _, vs := range cfg.Volsys {
		fmt.Fprintf(w, "\nvolume system %s\n", vs.ID)
		for _, r := range vs.Reactions {
			fmt.Fprintf(w, "  %s: %s -> %s  k=%g\n", r.ID, sides(side(r.LHS, "")), sides(side(r.RHS, "")), r.K)
		}
		for _, d := range vs.Diffusions {
			fmt.Fprintf(w, "  %s: diffusion of %s  D=%g m^2/s\n", d.ID, d.Species, d.D)
		}
	}
	for _, ss := range cfg.Surfsys {
		fmt.Fprintf(w, "\nsurface system %s\n", ss.ID)
		for _, r := range ss.Reactions {
			lhs := sides(side(r.OLHS, "(o)"), side(r.ILHS, "(i)"), side(r.SLHS, "(s)"))
			rhs := sides(side(r.ORHS, "(o)"), side(r.IRHS, "(i)"), side(r.SRHS, "(s)"))
			fmt.Fprintf(w, "  %s: %s -> %s  k=%g\n", r.ID, lhs, rhs, r.K)
		}
	}

	if mesh, ok := g.(*geom.TetMesh); ok {
		fmt.Fprintf(w, "\ngeometry: tetrahedral mesh, %d tets, %d triangles\n", mesh.NTets(), mesh.NTris())
	} else {
		fmt.Fprintln(w, "\ngeometry: well-mixed")
	}
	for _, c := range g.Comps() {
		fmt.Fprintf(w, "  compartment %s  vol=%.4g m^3  volsys=%s\n", c.ID, c.Vol, joinOr(c.Volsys, ",", "-"))
	}
	for _, p := range g.Patches() {
		outer := p.OComp
		if outer == "" {
			outer = "-"
		}
		fmt.Fprintf(w, "  patch %s  area=%.4g m^2  inner=%s outer=%s  surfsys=%s\n",
			p.ID, p.Area, p.IComp, outer, joinOr(p.Surfsys, ",", "-"))
	}

	if len(cfg.Initial) > 0 {
		fmt.Fprintln(w, "\ninitial:")
		for _, in := range cfg.Initial {
			var b strings.Builder
			fmt.Fprintf(&b, "  %s %s", in.Where, in.Species)
			if in.Conc > 0 {
				fmt.Fprintf(&b, " conc=%g M", in.Conc)
			} else {
				fmt.Fprintf(&b, " count=%d", in.Count)
			}
			if len(in.Tets) > 0 {
				fmt.Fprintf(&b, " tets=%v", in.Tets)
			}
			if in.Clamped {
				b.WriteString(" clamped")
			}
			fmt.Fprintln(w, b.String())
		}
	}

	s := cfg.Solver
	fmt.Fprintf(w, "\nsolver: scheduler=%s rng=%s seed=%d end=%g sample_dt=%g replicates=%d\n",
		s.Scheduler, s.RNG, s.Seed, s.EndTime, s.SampleDt, s.Replicates)
	return nil
}

// side joins species with " + ", repeating stoichiometry as listed, and
// tags each with suffix.
func side(species []string, suffix string) string {
	if len(species) == 0 {
		return ""
	}
	parts := make([]string, len(species))
	for i, sp := range species {
		parts[i] = sp + suffix
	}
	return strings.Join(parts, " + ")
}

func sides(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return joinOr(nonEmpty, " + ", "0")
}

func joinOr(items []string, sep, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, sep)
}

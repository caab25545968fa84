// Package sim is the stochastic simulation engine: an exact SSA over the
// kinetic processes of a compiled model.
//
// Each reaction, surface reaction and diffusion rule becomes one kinetic
// process per element it lives in (a compartment or tetrahedron, a patch or
// triangle). Processes are numbered once at construction; that number is
// the process's leaf in the scheduler and never changes.
//
//   - [KProc]: a kinetic process, a tagged variant over [Kind]
//   - [Solver]: owns elements, processes, the scheduler and the clock
//   - [Checkpoint]: serialisable engine state
//   - [Ensemble]: independent replicates run concurrently
//
// # Example
//
//	src, _ := rng.New("mt19937", 42)
//	s, err := sim.New(m, g, src, sim.Options{Scheduler: "tree"})
//	if err != nil {
//		return err
//	}
//	if err := s.Run(10); err != nil {
//		return err
//	}
//	n, _ := s.CompCount("cyt", "A")
//
// # Thread Safety
//
// A Solver is not safe for concurrent use. Replicates need their own
// Solver and random source; [Ensemble] arranges that.
package sim

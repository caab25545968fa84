package sim

import (
	"context"
	"sync"
)

// Factory builds the solver of replicate idx. Every replicate must get
// its own random source.
type Factory func(idx int) (*Solver, error)

// Ensemble runs independent replicates concurrently, one goroutine each.
type Ensemble struct {
	build   Factory
	numRuns int
}

func NewEnsemble(build Factory, numRuns int) *Ensemble {
	return &Ensemble{build: build, numRuns: numRuns}
}

// Run builds every replicate and hands it to fn. The first error, in
// replicate order, is returned.
func (e *Ensemble) Run(ctx context.Context, fn func(ctx context.Context, idx int, s *Solver) error) ([]*Solver, error) {
	solvers := make([]*Solver, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			s, err := e.build(idx)
			if err != nil {
				errs[idx] = err
				return
			}
			solvers[idx] = s
			errs[idx] = fn(ctx, idx, s)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return solvers, nil
}

package experiment

import (
	"fmt"
	"slices"

	"github.com/san-kum/kmcsim/internal/metrics"
	"github.com/san-kum/kmcsim/internal/rng"
	"github.com/san-kum/kmcsim/internal/sched"
)

// Registry resolves the names a configuration may use.
type Registry struct {
	schedulers []string
	rngs       []string
	metrics    map[string]func() metrics.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		schedulers: sched.Names(),
		rngs:       rng.Names(),
		metrics:    make(map[string]func() metrics.Metric),
	}

	r.metrics["event_rate"] = func() metrics.Metric { return metrics.NewEventRate() }
	r.metrics["mean_propensity"] = func() metrics.Metric { return metrics.NewMeanPropensity() }
	r.metrics["final_extent"] = func() metrics.Metric { return metrics.NewFinalExtent() }

	return r
}

// CheckScheduler reports whether name, or one of its aliases, is known.
func (r *Registry) CheckScheduler(name string) error {
	_, err := sched.New(name, 0)
	return err
}

func (r *Registry) Source(name string, seed uint64) (rng.Source, error) {
	return rng.New(name, seed)
}

func (r *Registry) GetMetric(name string) (metrics.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListSchedulers() []string { return slices.Clone(r.schedulers) }
func (r *Registry) ListRNGs() []string       { return slices.Clone(r.rngs) }

func (r *Registry) ListMetrics() []string {
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultMetrics returns one of each registered metric.
func (r *Registry) DefaultMetrics() []metrics.Metric {
	var out []metrics.Metric
	for _, name := range r.ListMetrics() {
		m, _ := r.GetMetric(name)
		out = append(out, m)
	}
	return out
}

package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/kmcsim/internal/sim"
)

// Collector exports solver progress as prometheus metrics on a private
// registry, one series per replicate.
type Collector struct {
	reg        *prometheus.Registry
	events     *prometheus.CounterVec
	simTime    *prometheus.GaugeVec
	propensity *prometheus.GaugeVec
	resyncs    *prometheus.CounterVec

	mu   sync.Mutex
	last map[int]progress
}

type progress struct {
	steps, resyncs uint64
}

func NewCollector(run string) *Collector {
	labels := prometheus.Labels{"run": run}
	c := &Collector{
		reg: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kmcsim_events_total",
			Help:        "Reaction and diffusion events fired.",
			ConstLabels: labels,
		}, []string{"replicate"}),
		simTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "kmcsim_sim_time_seconds",
			Help:        "Simulated time reached.",
			ConstLabels: labels,
		}, []string{"replicate"}),
		propensity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "kmcsim_total_propensity",
			Help:        "Total propensity maintained by the scheduler.",
			ConstLabels: labels,
		}, []string{"replicate"}),
		resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kmcsim_resyncs_total",
			Help:        "Scheduler resynchronisations.",
			ConstLabels: labels,
		}, []string{"replicate"}),
		last: make(map[int]progress),
	}
	c.reg.MustRegister(c.events, c.simTime, c.propensity, c.resyncs)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Observe records the progress of a replicate since its previous
// observation. It is safe for concurrent use.
func (c *Collector) Observe(replicate int, s *sim.Solver) {
	rep := strconv.Itoa(replicate)
	cur := progress{steps: s.NSteps(), resyncs: s.Resyncs()}

	c.mu.Lock()
	prev := c.last[replicate]
	c.last[replicate] = cur
	c.mu.Unlock()

	// A reset solver starts counting again from zero.
	if cur.steps < prev.steps {
		prev.steps = 0
	}
	if cur.resyncs < prev.resyncs {
		prev.resyncs = 0
	}
	c.events.WithLabelValues(rep).Add(float64(cur.steps - prev.steps))
	c.resyncs.WithLabelValues(rep).Add(float64(cur.resyncs - prev.resyncs))
	c.simTime.WithLabelValues(rep).Set(s.Time())
	c.propensity.WithLabelValues(rep).Set(s.A0())
}

// WriteTextfile writes the current values in the node exporter textfile
// format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.reg)
}

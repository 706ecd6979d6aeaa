// Package metrics defines the Prometheus collectors refinec records into.
//
// A nil *Collectors is valid and records nothing, so components take one
// unconditionally and callers disable metrics by passing nil.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups every metric refinec exports
type Collectors struct {
	Registry *prometheus.Registry

	solverRuns    *prometheus.CounterVec
	solverLatency prometheus.Histogram
	episodes      *prometheus.CounterVec
	obligations   prometheus.Counter
	kvars         prometheus.Counter
	internedTerms prometheus.Gauge
}

// New registers a fresh set of collectors in their own registry
func New() *Collectors {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collectors{
		Registry: reg,
		solverRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "refine_solver_runs_total",
			Help: "Solver invocations by verdict (safe, unsafe, crash, error)",
		}, []string{"verdict"}),
		solverLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "refine_solver_latency_seconds",
			Help:    "Wall time of one solver invocation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		episodes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "refine_episodes_total",
			Help: "Checked functions by outcome",
		}, []string{"outcome"}),
		obligations: factory.NewCounter(prometheus.CounterOpts{
			Name: "refine_obligations_total",
			Help: "Tagged obligations emitted into tasks",
		}),
		kvars: factory.NewCounter(prometheus.CounterOpts{
			Name: "refine_kvars_total",
			Help: "K-variables introduced for inference holes",
		}),
		internedTerms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "refine_interned_terms",
			Help: "Distinct terms in the session arena",
		}),
	}
}

// ObserveSolve records one solver invocation
func (c *Collectors) ObserveSolve(verdict string, d time.Duration) {
	if c == nil {
		return
	}
	c.solverRuns.WithLabelValues(verdict).Inc()
	c.solverLatency.Observe(d.Seconds())
}

// ObserveEpisode records the outcome of checking one function
func (c *Collectors) ObserveEpisode(outcome string) {
	if c == nil {
		return
	}
	c.episodes.WithLabelValues(outcome).Inc()
}

// AddObligations counts tagged obligations
func (c *Collectors) AddObligations(n int) {
	if c == nil {
		return
	}
	c.obligations.Add(float64(n))
}

// AddKVars counts introduced k-variables
func (c *Collectors) AddKVars(n int) {
	if c == nil {
		return
	}
	c.kvars.Add(float64(n))
}

// SetInternedTerms reports the arena size
func (c *Collectors) SetInternedTerms(n int) {
	if c == nil {
		return
	}
	c.internedTerms.Set(float64(n))
}

// WriteTextfile dumps all metrics in the text exposition format, for
// node_exporter's textfile collector
func (c *Collectors) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.Registry)
}

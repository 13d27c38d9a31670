package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes executor activity as prometheus metrics.
type Collector struct {
	runsStarted   *prometheus.CounterVec
	runsFinished  *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	actionErrors  *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge
	cacheSize     *prometheus.GaugeVec
	compensations prometheus.Counter
}

func NewCollector(registerer prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wfhammer",
			Name:      "runs_started_total",
			Help:      "Workflow runs started or resumed.",
		}, []string{"workflow"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wfhammer",
			Name:      "runs_finished_total",
			Help:      "Workflow runs finished by status.",
		}, []string{"workflow", "status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wfhammer",
			Name:      "transitions_total",
			Help:      "State transitions performed.",
		}, []string{"workflow"}),
		actionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wfhammer",
			Name:      "action_errors_total",
			Help:      "Action failures by error kind.",
		}, []string{"workflow", "kind"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wfhammer",
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"workflow"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wfhammer",
			Name:      "active_runs",
			Help:      "Runs currently executing.",
		}),
		cacheSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wfhammer",
			Name:      "cache_entries",
			Help:      "Entries held per cache.",
		}, []string{"cache"}),
		compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wfhammer",
			Name:      "compensations_total",
			Help:      "Compensation hops taken after failures.",
		}),
	}
	collectors := []prometheus.Collector{
		c.runsStarted, c.runsFinished, c.transitions, c.actionErrors,
		c.runDuration, c.activeRuns, c.cacheSize, c.compensations,
	}
	for _, col := range collectors {
		if err := registerer.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) RunStarted(workflow string) {
	c.runsStarted.WithLabelValues(workflow).Inc()
	c.activeRuns.Inc()
}

func (c *Collector) RunFinished(workflow string, status string, seconds float64) {
	c.runsFinished.WithLabelValues(workflow, status).Inc()
	c.runDuration.WithLabelValues(workflow).Observe(seconds)
	c.activeRuns.Dec()
}

func (c *Collector) Transition(workflow string) {
	c.transitions.WithLabelValues(workflow).Inc()
}

func (c *Collector) ActionError(workflow string, kind string) {
	c.actionErrors.WithLabelValues(workflow, kind).Inc()
}

func (c *Collector) Compensation() {
	c.compensations.Inc()
}

func (c *Collector) CacheEntries(cache string, size int) {
	c.cacheSize.WithLabelValues(cache).Set(float64(size))
}

// Package metrics exposes Prometheus instrumentation for block selection
// and session progress.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quantiz"

// Outcome labels.
const (
	OutcomeSelected     = "selected"
	OutcomeInsufficient = "insufficient"
	OutcomeInfeasible   = "infeasible"
	OutcomeSolverError  = "solver_error"
)

// Collector owns a private registry with every quantiz metric. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	generations       *prometheus.CounterVec
	attempts          *prometheus.CounterVec
	attemptsPerBlock  prometheus.Histogram
	solverNodes       prometheus.Histogram
	blocksSubmitted   prometheus.Counter
	sessionsStarted   prometheus.Counter
	sessionsCompleted prometheus.Counter
}

// New creates a Collector with its metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_generations_total",
			Help:      "Block generations by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relaxation_attempts_total",
			Help:      "Optimizer attempts inside the relaxation loop by outcome.",
		}, []string{"outcome"}),
		attemptsPerBlock: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempts_per_generation",
			Help:      "Relaxation attempts used by one block generation.",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		}),
		solverNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solver_nodes",
			Help:      "Branch-and-bound nodes explored per successful solve.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}),
		blocksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_submitted_total",
			Help:      "Blocks submitted across all sessions.",
		}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions started, including restarts.",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Sessions that reached the completed state.",
		}),
	}
	c.registry.MustRegister(
		c.generations,
		c.attempts,
		c.attemptsPerBlock,
		c.solverNodes,
		c.blocksSubmitted,
		c.sessionsStarted,
		c.sessionsCompleted,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveGeneration records the outcome of one block generation.
func (c *Collector) ObserveGeneration(outcome string, attempts int) {
	if c == nil {
		return
	}
	c.generations.WithLabelValues(outcome).Inc()
	c.attemptsPerBlock.Observe(float64(attempts))
}

// ObserveAttempt records one optimizer attempt. nodes is only recorded for
// successful solves.
func (c *Collector) ObserveAttempt(outcome string, nodes int) {
	if c == nil {
		return
	}
	c.attempts.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSelected {
		c.solverNodes.Observe(float64(nodes))
	}
}

func (c *Collector) BlockSubmitted() {
	if c == nil {
		return
	}
	c.blocksSubmitted.Inc()
}

func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.sessionsStarted.Inc()
}

func (c *Collector) SessionCompleted() {
	if c == nil {
		return
	}
	c.sessionsCompleted.Inc()
}

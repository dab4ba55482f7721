// Package metrics exposes Prometheus instruments for the reward engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/rewards-engine/generic"
)

type EngineMetrics struct {
	calculations *prometheus.CounterVec
	points       *prometheus.HistogramVec
	duration     *prometheus.HistogramVec
	solverNodes  prometheus.Histogram
	gain         prometheus.Histogram
	transactions *prometheus.CounterVec
}

var (
	engineOnce     sync.Once
	engineRegistry *EngineMetrics
)

// Engine returns the process-wide instruments, registering them once.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rewards_calculations_total",
				Help: "Calculation sessions by strategy and outcome (ok, degraded, error).",
			}, []string{"strategy", "outcome"}),
			points: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "rewards_points_awarded",
				Help:    "Total points per calculation session.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			}, []string{"strategy"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "rewards_calculation_seconds",
				Help:    "Wall time of one calculation session.",
				Buckets: prometheus.DefBuckets,
			}, []string{"strategy"}),
			solverNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "rewards_solver_nodes",
				Help:    "Branch-and-bound nodes explored per optimal calculation.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			}),
			gain: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "rewards_optimizer_gain_points",
				Help:    "Points the optimizer earned over the greedy baseline in comparisons.",
				Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000, 5000},
			}),
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rewards_transactions_ingested_total",
				Help: "Transactions accepted by the ledger, by merchant.",
			}, []string{"merchant"}),
		}
		prometheus.MustRegister(
			engineRegistry.calculations,
			engineRegistry.points,
			engineRegistry.duration,
			engineRegistry.solverNodes,
			engineRegistry.gain,
			engineRegistry.transactions,
		)
	})
	return engineRegistry
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAllocation records a finished session.
func (m *EngineMetrics) ObserveAllocation(a *generic.Allocation, elapsed time.Duration) {
	if m == nil || a == nil {
		return
	}
	strategy := string(a.Strategy)
	outcome := "ok"
	if a.IsDegraded() {
		outcome = "degraded"
	}
	m.calculations.WithLabelValues(strategy, outcome).Inc()
	m.points.WithLabelValues(strategy).Observe(float64(a.Total))
	m.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if a.Strategy == generic.StrategyOptimal {
		m.solverNodes.Observe(float64(a.SolverNodes))
	}
}

// ObserveError records a session that failed before producing a result.
func (m *EngineMetrics) ObserveError(strategy generic.Strategy) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "unknown"
	}
	m.calculations.WithLabelValues(string(strategy), "error").Inc()
}

func (m *EngineMetrics) ObserveGain(gain generic.Points) {
	if m == nil {
		return
	}
	m.gain.Observe(float64(gain))
}

func (m *EngineMetrics) ObserveTransactions(txs []generic.Transaction) {
	if m == nil {
		return
	}
	for _, tx := range txs {
		m.transactions.WithLabelValues(string(tx.Merchant)).Inc()
	}
}

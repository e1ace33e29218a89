package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/arbiter/pkg/config"
)

// SimulationMetrics tracks test-case harness runs.
//
// Metrics:
//   - arbiter_simulation_runs_total: Harness runs
//   - arbiter_simulation_cases_total: Cases by outcome (passed, failed, error)
//   - arbiter_simulation_last_pass_rate: Pass rate of the latest run, in percent
type SimulationMetrics struct {
	runsTotal    prometheus.Counter
	casesTotal   *prometheus.CounterVec
	lastPassRate prometheus.Gauge
}

// NewSimulationMetrics creates and registers simulation metrics with the provided registry.
func NewSimulationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SimulationMetrics {
	sm := &SimulationMetrics{
		runsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "simulation",
				Name:      "runs_total",
				Help:      "Total number of simulation runs",
			},
		),

		casesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "simulation",
				Name:      "cases_total",
				Help:      "Total number of simulated test cases by outcome",
			},
			[]string{"status"},
		),

		lastPassRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "simulation",
				Name:      "last_pass_rate",
				Help:      "Pass rate of the most recent simulation run in percent",
			},
		),
	}

	registry.MustRegister(sm.runsTotal, sm.casesTotal, sm.lastPassRate)
	return sm
}

// RecordRun records the outcome counts of one harness run.
func (sm *SimulationMetrics) RecordRun(passed, failed, errored int, passRate float64) {
	sm.runsTotal.Inc()
	sm.casesTotal.WithLabelValues("passed").Add(float64(passed))
	sm.casesTotal.WithLabelValues("failed").Add(float64(failed))
	sm.casesTotal.WithLabelValues("error").Add(float64(errored))
	sm.lastPassRate.Set(passRate)
}

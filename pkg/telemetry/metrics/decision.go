package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/arbiter/pkg/config"
	"mercator-hq/arbiter/pkg/model"
)

// DecisionMetrics tracks rule and workflow evaluation.
//
// Metrics:
//   - arbiter_decisions_total: Decisions by mode, workflow, and outcome
//   - arbiter_decisions_execution_duration_seconds: Evaluation latency by mode
//   - arbiter_decisions_rule_matches_total: Rules that matched, by rule id
//   - arbiter_decisions_flags_total: Flags raised, by flag
//   - arbiter_decisions_execution_errors_total: Evaluations that reported errors
//   - arbiter_decisions_validations_total: Workflow validations by outcome
type DecisionMetrics struct {
	decisionsTotal    *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	ruleMatchesTotal  *prometheus.CounterVec
	flagsTotal        *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	validationsTotal  *prometheus.CounterVec
}

// NewDecisionMetrics creates and registers decision metrics with the provided registry.
func NewDecisionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DecisionMetrics {
	dm := &DecisionMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "total",
				Help:      "Total number of decisions made",
			},
			[]string{"mode", "workflow", "decision"},
		),

		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "execution_duration_seconds",
				Help:      "Duration of rule and workflow evaluation in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"mode"},
		),

		ruleMatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_matches_total",
				Help:      "Total number of rule matches",
			},
			[]string{"rule_id"},
		),

		flagsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "flags_total",
				Help:      "Total number of flags raised",
			},
			[]string{"flag"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "execution_errors_total",
				Help:      "Total number of evaluations that reported errors",
			},
			[]string{"mode"},
		),

		validationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "validations_total",
				Help:      "Total number of workflow validations",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		dm.decisionsTotal,
		dm.executionDuration,
		dm.ruleMatchesTotal,
		dm.flagsTotal,
		dm.errorsTotal,
		dm.validationsTotal,
	)

	return dm
}

// RecordDecision records one evaluation. workflow is "" for a standalone
// rule set.
func (dm *DecisionMetrics) RecordDecision(mode, workflow string, result *model.DecisionResult, duration time.Duration) {
	dm.decisionsTotal.WithLabelValues(mode, workflow, string(result.Decision)).Inc()
	dm.executionDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if result.HasErrors() {
		dm.errorsTotal.WithLabelValues(mode).Inc()
	}
}

// RecordRuleMatch records a matched rule.
func (dm *DecisionMetrics) RecordRuleMatch(ruleID string) {
	dm.ruleMatchesTotal.WithLabelValues(ruleID).Inc()
}

// RecordFlag records a raised flag.
func (dm *DecisionMetrics) RecordFlag(flag string) {
	dm.flagsTotal.WithLabelValues(flag).Inc()
}

// RecordValidation records a validation outcome.
func (dm *DecisionMetrics) RecordValidation(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	dm.validationsTotal.WithLabelValues(result).Inc()
}

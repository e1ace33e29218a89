package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/arbiter/pkg/config"
	"mercator-hq/arbiter/pkg/model"
)

// otherLabel replaces label values beyond the cardinality limit.
const otherLabel = "other"

// defaultMaxCardinality caps distinct workflow, rule, and flag label values.
const defaultMaxCardinality = 1000

// Collector owns every Prometheus metric of the service. A collector
// built from a disabled config accepts all calls and records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics    *RequestMetrics
	decisionMetrics   *DecisionMetrics
	simulationMetrics *SimulationMetrics
	catalogMetrics    *CatalogMetrics

	workflowLimiter *CardinalityLimiter
	ruleLimiter     *CardinalityLimiter
	flagLimiter     *CardinalityLimiter
}

// NewCollector creates a collector registering into registry, or into a
// fresh registry when registry is nil. Go runtime and process metrics are
// registered alongside.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Copy so defaults applied here never leak back into the caller's config.
	local := *cfg
	if local.Namespace == "" {
		local.Namespace = config.DefaultMetricsNamespace
	}
	if local.Subsystem == "" {
		local.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(local.DurationBuckets) == 0 {
		local.DurationBuckets = config.DefaultDurationBuckets
	}

	c := &Collector{
		config:          &local,
		registry:        registry,
		workflowLimiter: NewCardinalityLimiter(defaultMaxCardinality),
		ruleLimiter:     NewCardinalityLimiter(defaultMaxCardinality),
		flagLimiter:     NewCardinalityLimiter(defaultMaxCardinality),
	}

	if !local.Enabled {
		return c
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.requestMetrics = NewRequestMetrics(&local, registry)
	c.decisionMetrics = NewDecisionMetrics(&local, registry)
	c.simulationMetrics = NewSimulationMetrics(&local, registry)
	c.catalogMetrics = NewCatalogMetrics(&local, registry)

	return c
}

// Enabled reports whether metrics are recorded.
func (c *Collector) Enabled() bool {
	return c != nil && c.config.Enabled
}

// BeginRequest marks an HTTP request in flight; call the returned func
// with the response status.
func (c *Collector) BeginRequest(route, method string) func(code int) {
	if !c.Enabled() {
		return func(int) {}
	}
	return c.requestMetrics.Begin(route, method)
}

// RecordDecision records an evaluation, its matched rules, and its flags.
// mode is "workflow" or "rules".
func (c *Collector) RecordDecision(mode, workflowID string, result *model.DecisionResult, duration time.Duration) {
	if !c.Enabled() || result == nil {
		return
	}

	c.decisionMetrics.RecordDecision(mode, c.workflowLimiter.Label(workflowID), result, duration)
	for _, ruleID := range result.ExecutedRules {
		c.decisionMetrics.RecordRuleMatch(c.ruleLimiter.Label(ruleID))
	}
	for _, flag := range result.Flags {
		c.decisionMetrics.RecordFlag(c.flagLimiter.Label(flag))
	}
}

// RecordValidation records a workflow validation outcome.
func (c *Collector) RecordValidation(valid bool) {
	if !c.Enabled() {
		return
	}
	c.decisionMetrics.RecordValidation(valid)
}

// RecordSimulation records a harness run.
func (c *Collector) RecordSimulation(passed, failed, errored int, passRate float64) {
	if !c.Enabled() {
		return
	}
	c.simulationMetrics.RecordRun(passed, failed, errored, passRate)
}

// RecordCatalogReload records a definition catalog reload.
func (c *Collector) RecordCatalogReload(workflows, fileErrors int, err error) {
	if !c.Enabled() {
		return
	}
	c.catalogMetrics.RecordReload(workflows, fileErrors, err)
}

// EvidenceSource exposes the counters of an evidence recorder.
type EvidenceSource interface {
	Written() int64
	Dropped() int64
}

// RegisterEvidence exports the written and dropped counts of src. The
// counts are read at scrape time.
func (c *Collector) RegisterEvidence(src EvidenceSource) {
	if !c.Enabled() || src == nil {
		return
	}
	c.registry.MustRegister(
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: c.config.Namespace,
				Subsystem: "evidence",
				Name:      "records_written_total",
				Help:      "Total number of evidence records written to storage",
			},
			func() float64 { return float64(src.Written()) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: c.config.Namespace,
				Subsystem: "evidence",
				Name:      "records_dropped_total",
				Help:      "Total number of evidence records dropped because the buffer was full",
			},
			func() float64 { return float64(src.Dropped()) },
		),
	)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct values a label takes.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already known or still fits.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	_, exists := cl.current[value]
	cl.mu.RUnlock()
	if exists {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Label returns value, or "other" once the limit is reached.
func (cl *CardinalityLimiter) Label(value string) string {
	if cl.Allow(value) {
		return value
	}
	return otherLabel
}

// Count returns the number of admitted values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}

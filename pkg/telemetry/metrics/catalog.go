package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/arbiter/pkg/config"
)

// CatalogMetrics tracks the loaded workflow catalog.
//
// Metrics:
//   - arbiter_catalog_workflows: Workflows currently served
//   - arbiter_catalog_reloads_total: Catalog reloads by result
//   - arbiter_catalog_load_errors: Definition files that failed in the last load
type CatalogMetrics struct {
	workflows    prometheus.Gauge
	reloadsTotal *prometheus.CounterVec
	loadErrors   prometheus.Gauge
}

// NewCatalogMetrics creates and registers catalog metrics with the provided registry.
func NewCatalogMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CatalogMetrics {
	cm := &CatalogMetrics{
		workflows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "catalog",
				Name:      "workflows",
				Help:      "Number of workflow definitions currently loaded",
			},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "catalog",
				Name:      "reloads_total",
				Help:      "Total number of catalog reloads",
			},
			[]string{"result"},
		),

		loadErrors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "catalog",
				Name:      "load_errors",
				Help:      "Number of definition files that failed to load in the last reload",
			},
		),
	}

	registry.MustRegister(cm.workflows, cm.reloadsTotal, cm.loadErrors)
	return cm
}

// RecordReload records a reload attempt. On failure the gauges keep the
// values of the catalog still being served.
func (cm *CatalogMetrics) RecordReload(workflows, fileErrors int, err error) {
	if err != nil {
		cm.reloadsTotal.WithLabelValues("error").Inc()
		return
	}
	cm.reloadsTotal.WithLabelValues("success").Inc()
	cm.workflows.Set(float64(workflows))
	cm.loadErrors.Set(float64(fileErrors))
}

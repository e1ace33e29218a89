// Package metrics exposes Prometheus metrics for the decision service.
//
// A Collector registers request, decision, simulation, catalog, and
// evidence metrics into its own registry and serves them through Handler:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
//	collector.RecordDecision("workflow", wf.ID, result, elapsed)
//
// Workflow IDs, rule IDs, and flags come from user-authored definitions,
// so each of those labels is capped by a CardinalityLimiter; values past
// the cap are reported as "other".
package metrics

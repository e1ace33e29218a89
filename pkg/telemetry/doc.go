// Package telemetry groups the observability packages of Arbiter.
//
//   - logging: slog handlers adding request and trace identifiers, with
//     applicant PII redaction
//   - metrics: Prometheus metrics for decisions, simulations, the workflow
//     catalog, evidence, and HTTP traffic
//   - tracing: OpenTelemetry spans exported over OTLP
//   - health: liveness, readiness, and version probes
//
// Each package takes its section of config.TelemetryConfig. None of them
// ever records raw applicant data: logs redact it, spans and metrics only
// carry identifiers and outcomes.
package telemetry

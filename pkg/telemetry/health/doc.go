// Package health serves liveness, readiness, and version probes.
//
// Readiness aggregates named component checks: the workflow catalog must
// hold at least one definition, and the registry and evidence databases
// must answer a ping. Checks run concurrently, each bounded by the
// configured timeout; any failure turns the probe into a 503.
package health

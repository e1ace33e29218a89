// Arbiter is a credit decision rule and workflow engine.
//
// It validates and executes decision workflows authored as graphs of rule
// sets, conditions and actions, runs simulation suites against them, and
// serves them over HTTP with an audit trail of every decision.
//
// Usage:
//
//	# Validate workflow definitions
//	arbiter validate workflows/*.yaml
//
//	# Run one application through a workflow
//	arbiter execute --workflow workflows/personal-loan.yaml --data applicant.json
//
//	# Run a simulation suite
//	arbiter test suites/personal-loan.yaml --workers 8
//
//	# Serve the HTTP API
//	arbiter serve --config arbiter.yaml
//
//	# Manage versioned definitions
//	arbiter registry publish personal-loan 3
//
//	# Query the audit trail
//	arbiter evidence query --decision decline --since 2026-01-01T00:00:00Z
package main

func main() {
	Execute()
}

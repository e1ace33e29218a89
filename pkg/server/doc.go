// Package server exposes the decision engine over HTTP.
//
// # Routes
//
//   - POST /v1/workflows/validate: validate a definition, answers {isValid, errors}
//   - POST /v1/workflows/execute: run an inline workflow or a deployed workflowId
//   - POST /v1/rules/evaluate: evaluate a standalone rule set
//   - POST /v1/simulate: run test cases against a workflow or a rule set
//   - GET /v1/workflows and GET /v1/workflows/{id}: the deployed catalog
//   - GET /v1/evidence: query audit records (when an evidence store is set)
//   - the health probes and the Prometheus endpoint at their configured paths
//
// A workflowId resolves to the registry's published version first and to
// the file catalog second.
//
// # Middleware Chain
//
// Outermost first: request id, tracing, request logging, panic recovery,
// body size limit. Errors are JSON ErrorResponse bodies carrying the
// request id, which is also the execution id of the decision and of its
// evidence record.
//
// # Basic Usage
//
//	srv, err := server.New(&cfg.Server, server.Options{
//	    Engine:   eng,
//	    Catalog:  catalog,
//	    Recorder: rec,
//	    Metrics:  collector,
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx) // returns after ctx is cancelled and requests drain
package server

// Package tracing provides OpenTelemetry tracing for the decision service.
//
// Spans are exported over OTLP gRPC. Incoming W3C trace context
// (traceparent, tracestate) is honored by HTTPMiddleware, which wraps every
// request in a server span; handlers add child spans for validation,
// execution, and simulation:
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "workflow.execute")
//	tracing.SetWorkflowAttributes(span, wf)
//	result := engine.Execute(ctx, wf, data)
//	tracing.SetResultAttributes(span, result)
//	span.End()
//
// A disabled tracer creates noop spans. Applicant data is never recorded
// on spans; only identifiers and the decision outcome are.
package tracing

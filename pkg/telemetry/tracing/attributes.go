package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/arbiter/pkg/model"
)

// Attribute keys use the "arbiter.*" namespace.
const (
	AttrWorkflowID      = "arbiter.workflow.id"
	AttrWorkflowVersion = "arbiter.workflow.version"
	AttrNodeCount       = "arbiter.workflow.nodes"
	AttrRuleCount       = "arbiter.rules.count"
	AttrDecision        = "arbiter.decision"
	AttrScore           = "arbiter.score"
	AttrExecutedRules   = "arbiter.rules.executed"
	AttrFlagCount       = "arbiter.flags.count"
	AttrErrorCount      = "arbiter.errors.count"
	AttrDurationMs      = "arbiter.duration_ms"
	AttrCaseCount       = "arbiter.simulation.cases"
	AttrPassRate        = "arbiter.simulation.pass_rate"
)

// SetWorkflowAttributes describes the workflow a span is executing.
func SetWorkflowAttributes(span trace.Span, wf *model.WorkflowDefinition) {
	if wf == nil {
		return
	}
	span.SetAttributes(
		attribute.String(AttrWorkflowID, wf.ID),
		attribute.Int(AttrWorkflowVersion, wf.Version),
		attribute.Int(AttrNodeCount, len(wf.Nodes)),
	)
}

// SetResultAttributes records the outcome of an evaluation. Applicant data
// is never attached to spans.
func SetResultAttributes(span trace.Span, result *model.DecisionResult) {
	if result == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrDecision, string(result.Decision)),
		attribute.StringSlice(AttrExecutedRules, result.ExecutedRules),
		attribute.Int(AttrFlagCount, len(result.Flags)),
		attribute.Int(AttrErrorCount, len(result.Errors)),
		attribute.Float64(AttrDurationMs, result.ExecutionTimeMs),
	}
	if score, ok := result.ScoreValue(); ok {
		attrs = append(attrs, attribute.Float64(AttrScore, score))
	}
	span.SetAttributes(attrs...)
}

package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/arbiter/pkg/config"
	"mercator-hq/arbiter/pkg/model"
)

func recordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(recorder),
	)
	cfg := config.NewDefaultConfig().Telemetry.Tracing
	cfg.Enabled = true
	tr := NewWithProvider(&cfg, provider)
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })
	return tr, recorder
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestNew_Disabled(t *testing.T) {
	cfg := config.NewDefaultConfig().Telemetry.Tracing
	tr, err := New(&cfg, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tr.Enabled() {
		t.Error("disabled config produced an enabled tracer")
	}

	_, span := tr.Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("noop tracer produced a valid span context")
	}
	span.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if _, err := New(nil, "test"); err == nil {
		t.Error("New(nil) expected error")
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerRatio, 1.5, true},
		{"sometimes", 0, true},
	}
	for _, tt := range tests {
		_, err := createSampler(tt.strategy, tt.ratio)
		if (err != nil) != tt.wantErr {
			t.Errorf("createSampler(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
		}
	}
}

func TestResultAttributes(t *testing.T) {
	tr, recorder := recordingTracer(t)

	score := 710.0
	ctx, span := tr.Start(context.Background(), "workflow.execute")
	SetWorkflowAttributes(span, &model.WorkflowDefinition{
		ID:      "personal-loan",
		Version: 2,
		Nodes:   []model.WorkflowNode{{ID: "start"}, {ID: "end"}},
	})
	SetResultAttributes(span, &model.DecisionResult{
		Decision:      model.DecisionApprove,
		Score:         &score,
		ExecutedRules: []string{"credit-floor"},
		Flags:         []string{"prime"},
	})
	SetError(span, errors.New("boom"))
	span.End()

	if TraceID(ctx) == "" {
		t.Error("TraceID() empty for a recorded span")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans", len(spans))
	}
	attrs := attrMap(spans[0].Attributes())
	if attrs[AttrWorkflowID].AsString() != "personal-loan" || attrs[AttrWorkflowVersion].AsInt64() != 2 {
		t.Errorf("workflow attrs = %v", attrs)
	}
	if attrs[AttrNodeCount].AsInt64() != 2 || attrs[AttrDecision].AsString() != "approve" {
		t.Errorf("attrs = %v", attrs)
	}
	if attrs[AttrScore].AsFloat64() != 710 {
		t.Errorf("score = %v", attrs[AttrScore])
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", spans[0].Status())
	}
}

func TestHTTPMiddleware(t *testing.T) {
	tr, recorder := recordingTracer(t)

	var handlerTraceID string
	handler := tr.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerTraceID = TraceID(r.Context())
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/workflows/execute", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	const upstream = "4bf92f3577b34da6a3ce929d0e0e4736"
	if handlerTraceID != upstream {
		t.Errorf("handler trace ID = %q, want upstream %q", handlerTraceID, upstream)
	}
	if got := rec.Header().Get("X-Trace-ID"); got != upstream {
		t.Errorf("X-Trace-ID = %q", got)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans", len(spans))
	}
	s := spans[0]
	if s.Name() != "POST /v1/workflows/execute" {
		t.Errorf("span name = %q", s.Name())
	}
	if s.Parent().SpanID().String() != "00f067aa0ba902b7" {
		t.Errorf("parent = %s", s.Parent().SpanID())
	}
	if attrMap(s.Attributes())["http.response.status_code"].AsInt64() != 500 || s.Status().Code != codes.Error {
		t.Errorf("status attrs = %v, status %v", s.Attributes(), s.Status())
	}
}

func TestHTTPMiddleware_DisabledKeepsUpstreamTrace(t *testing.T) {
	cfg := config.NewDefaultConfig().Telemetry.Tracing
	tr, err := New(&cfg, "test")
	if err != nil {
		t.Fatal(err)
	}

	var got string
	handler := tr.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = TraceID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace ID = %q, want the upstream one", got)
	}
}

func TestInject(t *testing.T) {
	tr, _ := recordingTracer(t)
	ctx, span := tr.Start(context.Background(), "client")
	defer span.End()

	headers := http.Header{}
	tr.Inject(ctx, headers)
	if headers.Get("traceparent") == "" {
		t.Error("traceparent not injected")
	}
}

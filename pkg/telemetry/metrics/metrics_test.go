package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/arbiter/pkg/config"
	"mercator-hq/arbiter/pkg/model"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:         true,
		Path:            "/metrics",
		Namespace:       "test",
		Subsystem:       "decisions",
		DurationBuckets: []float64{0.001, 0.01, 0.1},
	}
}

type fakeEvidence struct{ written, dropped int64 }

func (f *fakeEvidence) Written() int64 { return f.written }
func (f *fakeEvidence) Dropped() int64 { return f.dropped }

func TestCollector_RecordDecision(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	result := &model.DecisionResult{
		Decision:      model.DecisionDecline,
		ExecutedRules: []string{"dti-cap", "fraud-check"},
		Flags:         []string{"high-dti"},
		Errors:        []string{"field not numeric"},
	}
	c.RecordDecision("workflow", "personal-loan", result, 2*time.Millisecond)
	c.RecordDecision("workflow", "personal-loan", result, 3*time.Millisecond)

	dm := c.decisionMetrics
	if got := testutil.ToFloat64(dm.decisionsTotal.WithLabelValues("workflow", "personal-loan", "decline")); got != 2 {
		t.Errorf("decisions_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(dm.ruleMatchesTotal.WithLabelValues("dti-cap")); got != 2 {
		t.Errorf("rule_matches_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(dm.flagsTotal.WithLabelValues("high-dti")); got != 2 {
		t.Errorf("flags_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(dm.errorsTotal.WithLabelValues("workflow")); got != 2 {
		t.Errorf("execution_errors_total = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(dm.executionDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}

	c.RecordDecision("rules", "", nil, time.Millisecond)
}

func TestCollector_OtherMetrics(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.RecordValidation(true)
	c.RecordValidation(false)
	c.RecordValidation(false)
	if got := testutil.ToFloat64(c.decisionMetrics.validationsTotal.WithLabelValues("invalid")); got != 2 {
		t.Errorf("invalid validations = %v", got)
	}

	c.RecordSimulation(8, 1, 1, 80)
	if got := testutil.ToFloat64(c.simulationMetrics.casesTotal.WithLabelValues("passed")); got != 8 {
		t.Errorf("passed cases = %v", got)
	}
	if got := testutil.ToFloat64(c.simulationMetrics.lastPassRate); got != 80 {
		t.Errorf("last pass rate = %v", got)
	}

	c.RecordCatalogReload(3, 1, nil)
	c.RecordCatalogReload(0, 0, errors.New("parse failure"))
	if got := testutil.ToFloat64(c.catalogMetrics.workflows); got != 3 {
		t.Errorf("catalog workflows = %v, failed reload must keep 3", got)
	}
	if got := testutil.ToFloat64(c.catalogMetrics.reloadsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed reloads = %v", got)
	}

	done := c.BeginRequest("/v1/rules/evaluate", http.MethodPost)
	if got := testutil.ToFloat64(c.requestMetrics.inFlight); got != 1 {
		t.Errorf("in flight = %v", got)
	}
	done(http.StatusOK)
	if got := testutil.ToFloat64(c.requestMetrics.requestsTotal.WithLabelValues("/v1/rules/evaluate", "POST", "200")); got != 1 {
		t.Errorf("requests_total = %v", got)
	}
}

func TestCollector_EvidenceAndHandler(t *testing.T) {
	c := NewCollector(testConfig(), nil)
	src := &fakeEvidence{written: 41, dropped: 2}
	c.RegisterEvidence(src)
	c.RecordDecision("rules", "", &model.DecisionResult{Decision: model.DecisionApprove}, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"test_evidence_records_written_total 41",
		"test_evidence_records_dropped_total 2",
		`test_decisions_total{decision="approve",mode="rules",workflow=""} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output lacks %q", want)
		}
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, nil)

	c.RecordDecision("workflow", "wf", &model.DecisionResult{Decision: model.DecisionApprove}, time.Millisecond)
	c.RecordValidation(true)
	c.BeginRequest("/x", "GET")(200)
	c.RegisterEvidence(&fakeEvidence{})

	if n, err := testutil.GatherAndCount(c.Registry()); err != nil || n != 0 {
		t.Errorf("disabled collector registered %d metrics (err %v)", n, err)
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)
	if cl.Label("a") != "a" || cl.Label("b") != "b" {
		t.Fatal("values under the limit were rewritten")
	}
	if cl.Label("c") != otherLabel {
		t.Error("value past the limit was admitted")
	}
	if cl.Label("a") != "a" {
		t.Error("known value rejected")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d", cl.Count())
	}
}

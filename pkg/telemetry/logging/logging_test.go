package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/arbiter/pkg/config"
	"mercator-hq/arbiter/pkg/model"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"json", Config{Level: "info", Format: "json"}, false},
		{"text", Config{Level: "debug", Format: "text"}, false},
		{"defaults", Config{}, false},
		{"invalid level", Config{Level: "verbose"}, true},
		{"invalid format", Config{Format: "xml"}, true},
		{"invalid pattern", Config{RedactPII: true, RedactPatterns: []config.RedactPattern{{Name: "x", Pattern: "("}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Writer = &bytes.Buffer{}
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %s", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn not logged")
	}
}

func TestNew_LevelVar(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger, err := New(Config{Level: "error", Writer: &buf, LevelVar: level})
	if err != nil {
		t.Fatal(err)
	}
	if level.Level() != slog.LevelError {
		t.Fatalf("LevelVar = %s, want ERROR", level.Level())
	}
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at error level: %s", buf.String())
	}

	level.Set(slog.LevelDebug)
	logger.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("debug not logged after lowering the level")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.NewDefaultConfig().Telemetry.Logging
	var buf bytes.Buffer
	lc := FromConfig(&cfg, &buf)
	if lc.Level != "info" || lc.Format != "json" || !lc.RedactPII || lc.Writer != &buf {
		t.Errorf("FromConfig() = %+v", lc)
	}
}

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithExecutionID(ctx, "exec-9")
	ctx = WithWorkflowID(ctx, "personal-loan")
	ctx = trace.ContextWithSpanContext(ctx, sc)

	logger.InfoContext(ctx, "evaluated")
	entry := decodeLine(t, &buf)

	want := map[string]string{
		"request_id":   "req-1",
		"execution_id": "exec-9",
		"workflow_id":  "personal-loan",
		"trace_id":     "0af7651916cd43dd8448eb211c80319c",
		"span_id":      "b7ad6b7169203331",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}

	if RequestID(context.Background()) != "" {
		t.Error("RequestID on empty context should be empty")
	}
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{
		RedactPII: true,
		Writer:    &buf,
		RedactPatterns: []config.RedactPattern{
			{Name: "loan_ref", Pattern: `LN-\d{6}`, Replacement: "LN-******"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	logger.With("applicantSSN", "123-45-6789").Info("contact jane@example.com about LN-123456",
		"date_of_birth", "1990-01-01",
		"businessName", "Acme",
		"note", "card 4111 1111 1111 1111 on file",
		"err", errors.New("lookup failed for 987-65-4321"),
		"applicant", model.ApplicantData{
			"ssn":    "111-22-3333",
			"email":  "bob@example.com",
			"income": 52000.0,
			"refs":   []any{map[string]any{"accountNumber": "acct-778899"}},
		},
	)
	out := buf.String()

	for _, leak := range []string{"123-45-6789", "1990-01-01", "jane@example.com", "4111 1111", "987-65-4321", "111-22-3333", "bob@example.com", "acct-778899", "LN-123456"} {
		if strings.Contains(out, leak) {
			t.Errorf("output leaks %q: %s", leak, out)
		}
	}

	entry := decodeLine(t, &buf)
	if entry["businessName"] != "Acme" {
		t.Errorf("businessName = %v, should be untouched", entry["businessName"])
	}
	applicant, ok := entry["applicant"].(map[string]any)
	if !ok {
		t.Fatalf("applicant = %T", entry["applicant"])
	}
	if applicant["income"] != 52000.0 {
		t.Errorf("income = %v", applicant["income"])
	}
	if !strings.Contains(entry["msg"].(string), "LN-******") {
		t.Errorf("custom pattern not applied: %v", entry["msg"])
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"ssn", true},
		{"applicant.SSN", true},
		{"tax_id", true},
		{"dateOfBirth", true},
		{"account-number", true},
		{"Authorization", true},
		{"businessName", false},
		{"creditScore", false},
		{"decision", false},
	}
	for _, tt := range tests {
		if got := IsSensitiveKey(tt.key); got != tt.want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"DEBUG": "DEBUG", "warning": "WARN", "": "INFO", "error": "ERROR"} {
		got, err := ParseLevel(in)
		if err != nil || got.String() != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %s", in, got, err, want)
		}
	}
}

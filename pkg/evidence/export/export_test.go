package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/arbiter/pkg/evidence"
)

func sampleRecords() []*evidence.Record {
	score := 712.5
	return []*evidence.Record{
		{
			ID:              "rec-1",
			ExecutionID:     "req-1",
			WorkflowID:      "personal-loan",
			WorkflowVersion: 2,
			Mode:            evidence.ModeWorkflow,
			Decision:        "approve",
			Score:           &score,
			Flags:           []string{"prime", "income-verified"},
			ExecutedRules:   []string{"credit-floor"},
			DurationMs:      1.5,
			CreatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			InputHash:       "abc",
		},
		{
			ID:          "rec-2",
			ExecutionID: "req-2",
			Mode:        evidence.ModeRules,
			Decision:    "review",
			Errors:      []string{"cycle_limit_exceeded"},
			Warnings:    []string{"a, quoted \"warning\""},
			CreatedAt:   time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC),
			InputHash:   "def",
		},
	}
}

func TestJSONExporter(t *testing.T) {
	for _, pretty := range []bool{false, true} {
		var buf bytes.Buffer
		if err := NewJSONExporter(pretty).Export(context.Background(), sampleRecords(), &buf); err != nil {
			t.Fatalf("Export(pretty=%v) error = %v", pretty, err)
		}

		var got []evidence.Record
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
		}
		if len(got) != 2 || got[0].ID != "rec-1" || got[1].Decision != "review" {
			t.Errorf("decoded = %+v", got)
		}
		if got[0].Score == nil || *got[0].Score != 712.5 {
			t.Errorf("score = %v", got[0].Score)
		}
		if pretty != strings.Contains(buf.String(), "\n  ") {
			t.Errorf("pretty=%v output indentation mismatch:\n%s", pretty, buf.String())
		}
	}
}

func TestJSONExporter_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), nil, &buf); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("Export(nil) = %q, want []", buf.String())
	}
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), sampleRecords(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(Header(), ",") {
		t.Errorf("header = %v", rows[0])
	}

	first := rows[1]
	checks := map[int]string{
		0:  "rec-1",
		3:  "2",
		4:  "workflow",
		6:  "712.5",
		7:  "prime;income-verified",
		11: "1.500",
		12: "2026-03-01T12:00:00Z",
	}
	for col, want := range checks {
		if first[col] != want {
			t.Errorf("row 1 column %s = %q, want %q", Header()[col], first[col], want)
		}
	}

	second := rows[2]
	if second[3] != "" || second[6] != "" {
		t.Errorf("rules-mode row should leave version and score empty: %v", second)
	}
	if second[10] != "a, quoted \"warning\"" {
		t.Errorf("warnings = %q", second[10])
	}
}

func TestCSVExporter_NoHeaderAndCancelled(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(false).Export(context.Background(), sampleRecords()[:1], &buf); err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(buf.String(), "id,") {
		t.Error("header written although disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewCSVExporter(true).Export(ctx, sampleRecords(), &bytes.Buffer{})
	var exportErr *evidence.ExportError
	if !errors.As(err, &exportErr) || !errors.Is(err, context.Canceled) {
		t.Errorf("Export(cancelled) error = %v", err)
	}
}

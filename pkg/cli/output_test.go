package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
)

type decisionRows [][]string

func (decisionRows) Header() []string { return []string{"ID", "DECISION", "SCORE"} }

func (r decisionRows) Rows() [][]string { return r }

type summary struct{ valid, total int }

func (s summary) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d/%d valid\n", s.valid, s.total)
	return err
}

type label string

func (l label) String() string { return "label:" + string(l) }

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"table", FormatTable, false},
		{"junit", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"text writer", summary{valid: 3, total: 4}, "3/4 valid\n"},
		{"stringer", label("x"), "label:x\n"},
		{"plain", 42, "42\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewFormatter(FormatText).FormatTo(&buf, tt.data); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{"decision": "approve", "flags": []string{"thin-file"}}
	if err := NewFormatter(FormatJSON).FormatTo(&buf, data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n  \"decision\"") {
		t.Errorf("output not indented: %s", buf.String())
	}
	var back map[string]any
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil || back["decision"] != "approve" {
		t.Errorf("round trip = %v, %v", back, err)
	}
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	rows := decisionRows{{"app-1", "approve", "742"}, {"application-22", "review", "-"}}
	if err := NewFormatter(FormatTable).FormatTo(&buf, rows); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	col := strings.Index(lines[0], "DECISION")
	if strings.Index(lines[1], "approve") != col || strings.Index(lines[2], "review") != col {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}

	buf.Reset()
	if err := NewFormatter(FormatTable).FormatTo(&buf, summary{1, 1}); err != nil || buf.String() != "1/1 valid\n" {
		t.Errorf("fallback = %q, %v", buf.String(), err)
	}
}

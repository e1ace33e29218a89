package query

import (
	"errors"
	"testing"
	"time"

	"mercator-hq/arbiter/pkg/evidence"
)

func TestValidate(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name    string
		query   *evidence.Query
		wantErr bool
	}{
		{"empty", &evidence.Query{}, false},
		{"full", &evidence.Query{WorkflowID: "wf", Decision: "decline", Mode: evidence.ModeRules, StartTime: &earlier, EndTime: &now, Limit: 50, Offset: 10, SortOrder: "asc"}, false},
		{"nil", nil, true},
		{"negative limit", &evidence.Query{Limit: -1}, true},
		{"limit too large", &evidence.Query{Limit: MaxLimit + 1}, true},
		{"negative offset", &evidence.Query{Offset: -5}, true},
		{"bad sort order", &evidence.Query{SortOrder: "sideways"}, true},
		{"bad decision", &evidence.Query{Decision: "maybe"}, true},
		{"bad mode", &evidence.Query{Mode: "batch"}, true},
		{"inverted range", &evidence.Query{StartTime: &now, EndTime: &earlier}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			var queryErr *evidence.QueryError
			if err != nil && !errors.As(err, &queryErr) {
				t.Errorf("error %T is not a QueryError", err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	q := &evidence.Query{}
	ApplyDefaults(q)
	if q.Limit != DefaultLimit || q.SortOrder != "desc" {
		t.Errorf("ApplyDefaults() = %+v", q)
	}

	q = &evidence.Query{Limit: 5, SortOrder: "asc"}
	ApplyDefaults(q)
	if q.Limit != 5 || q.SortOrder != "asc" {
		t.Errorf("ApplyDefaults overwrote explicit values: %+v", q)
	}
}

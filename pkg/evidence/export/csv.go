package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"mercator-hq/arbiter/pkg/evidence"
)

var _ evidence.Exporter = (*CSVExporter)(nil)

// CSVExporter writes evidence records as CSV. List columns are joined
// with ";".
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Header returns the CSV column names.
func Header() []string {
	return []string{
		"id", "execution_id", "workflow_id", "workflow_version", "mode",
		"decision", "score", "flags", "executed_rules", "errors", "warnings",
		"duration_ms", "created_at", "input_hash",
	}
}

// Export writes records to w.
func (e *CSVExporter) Export(ctx context.Context, records []*evidence.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(Header()); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return evidence.NewExportError("csv", i, err)
		}
		if err := writer.Write(recordToRow(record)); err != nil {
			return evidence.NewExportError("csv", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return evidence.NewExportError("csv", len(records), err)
	}
	return nil
}

func recordToRow(r *evidence.Record) []string {
	score := ""
	if r.Score != nil {
		score = strconv.FormatFloat(*r.Score, 'f', -1, 64)
	}
	version := ""
	if r.WorkflowVersion > 0 {
		version = strconv.Itoa(r.WorkflowVersion)
	}
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	return []string{
		r.ID,
		r.ExecutionID,
		r.WorkflowID,
		version,
		string(r.Mode),
		r.Decision,
		score,
		strings.Join(r.Flags, ";"),
		strings.Join(r.ExecutedRules, ";"),
		strings.Join(r.Errors, ";"),
		strings.Join(r.Warnings, ";"),
		strconv.FormatFloat(r.DurationMs, 'f', 3, 64),
		created,
		r.InputHash,
	}
}

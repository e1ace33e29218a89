package evidence

import (
	"context"
	"io"
	"time"
)

// Mode identifies what kind of definition produced a decision.
type Mode string

const (
	// ModeWorkflow is a full graph execution.
	ModeWorkflow Mode = "workflow"

	// ModeRules is a standalone rule-set evaluation.
	ModeRules Mode = "rules"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeWorkflow || m == ModeRules
}

// Record is the audit entry for one decision. Records are written once and
// never updated.
type Record struct {
	// ID uniquely identifies this record (UUID).
	ID string `json:"id"`

	// ExecutionID correlates the record with logs and traces of the
	// evaluation. It is the HTTP request id when served over the API.
	ExecutionID string `json:"executionId"`

	WorkflowID      string `json:"workflowId,omitempty"`
	WorkflowVersion int    `json:"workflowVersion,omitempty"`
	Mode            Mode   `json:"mode"`

	Decision      string   `json:"decision"`
	Score         *float64 `json:"score,omitempty"`
	Flags         []string `json:"flags,omitempty"`
	ExecutedRules []string `json:"executedRules,omitempty"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`

	DurationMs float64   `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`

	// InputHash is the hex SHA-256 of the canonical applicant JSON.
	InputHash string `json:"inputHash"`
}

// Failed reports whether the evaluation ended with runtime errors.
func (r *Record) Failed() bool {
	return len(r.Errors) > 0
}

// Query filters evidence records. Zero values mean "no filter".
type Query struct {
	WorkflowID string
	Decision   string
	Mode       Mode

	// StartTime and EndTime bound CreatedAt, both inclusive.
	StartTime *time.Time
	EndTime   *time.Time

	// Limit caps the number of records returned. 0 uses the default.
	Limit  int
	Offset int

	// SortOrder is "asc" or "desc" on CreatedAt. Default: desc.
	SortOrder string
}

// Storage persists evidence records.
type Storage interface {
	// Store persists a record. Records with an existing ID are rejected.
	Store(ctx context.Context, record *Record) error

	// Query returns the records matching the filters.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the filters, ignoring
	// Limit and Offset.
	Count(ctx context.Context, query *Query) (int64, error)

	// DeleteBefore removes records created strictly before cutoff and
	// returns how many were deleted.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases resources held by the backend.
	Close() error
}

// Exporter writes evidence records in some output format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}

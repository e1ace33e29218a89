package query

import (
	"fmt"

	"mercator-hq/arbiter/pkg/evidence"
	"mercator-hq/arbiter/pkg/model"
)

const (
	// DefaultLimit is the number of records returned when Limit is 0.
	DefaultLimit = 100

	// MaxLimit is the largest Limit a single query may request.
	MaxLimit = 10000
)

// Validate returns a *evidence.QueryError when the query is malformed.
func Validate(q *evidence.Query) error {
	if q == nil {
		return evidence.NewQueryError(q, fmt.Errorf("query is nil"))
	}
	if q.Limit < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.SortOrder != "" && q.SortOrder != "asc" && q.SortOrder != "desc" {
		return evidence.NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	if q.Decision != "" && !model.Decision(q.Decision).IsValid() {
		return evidence.NewQueryError(q, fmt.Errorf("invalid decision: %s (must be 'approve', 'decline', or 'review')", q.Decision))
	}
	if q.Mode != "" && !q.Mode.IsValid() {
		return evidence.NewQueryError(q, fmt.Errorf("invalid mode: %s (must be 'workflow' or 'rules')", q.Mode))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return evidence.NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}
	return nil
}

// ApplyDefaults fills in the default limit and sort order.
func ApplyDefaults(q *evidence.Query) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}

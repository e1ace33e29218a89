package model

// Decision is the terminal outcome of an evaluation.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDecline Decision = "decline"
	DecisionReview  Decision = "review"
)

// IsValid reports whether d is approve, decline or review.
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionDecline || d == DecisionReview
}

// Runtime error entries recorded on a DecisionResult.
const (
	ErrMissingBranchEdge    = "missing_branch_edge"
	ErrMissingEdge          = "missing_edge"
	ErrCycleLimitExceeded   = "cycle_limit_exceeded"
	ErrCancelled            = "cancelled"
	ErrInternal             = "internal_error"
	ErrMissingRequiredField = "missing_required_field"
)

// RuleTrace records how one rule evaluated.
type RuleTrace struct {
	NodeID   string   `json:"nodeId,omitempty"`
	RuleID   string   `json:"ruleId"`
	Matched  bool     `json:"matched"`
	Priority int      `json:"priority"`
	Actions  []string `json:"actions,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Notification is a notify or log side effect collected during evaluation.
type Notification struct {
	Type    ActionType `json:"type"`
	RuleID  string     `json:"ruleId,omitempty"`
	Target  string     `json:"target,omitempty"`
	Message string     `json:"message,omitempty"`
}

// DecisionResult is produced once per evaluation and is not modified afterwards.
type DecisionResult struct {
	Decision          Decision       `json:"decision"`
	Score             *float64       `json:"score,omitempty"`
	Flags             []string       `json:"flags"`
	ExecutedRules     []string       `json:"executedRules"`
	ExecutionTimeMs   float64        `json:"executionTimeMs"`
	Errors            []string       `json:"errors"`
	Warnings          []string       `json:"warnings"`
	RequiredDocuments []string       `json:"requiredDocuments,omitempty"`
	Values            map[string]any `json:"values,omitempty"`
	Notifications     []Notification `json:"notifications,omitempty"`
	Path              []string       `json:"path,omitempty"`
	Trace             []RuleTrace    `json:"trace,omitempty"`
}

// HasErrors reports whether the evaluation could not complete normally.
func (r *DecisionResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasFlag reports whether the result carries the given flag.
func (r *DecisionResult) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// ScoreValue returns the score and whether one was set.
func (r *DecisionResult) ScoreValue() (float64, bool) {
	if r.Score == nil {
		return 0, false
	}
	return *r.Score, true
}

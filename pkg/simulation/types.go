package simulation

import (
	"errors"
	"time"

	"mercator-hq/arbiter/pkg/model"
)

// Status is the outcome of one test case.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
)

// MessageCancelled is the error message of cases never run because the batch
// was cancelled.
const MessageCancelled = "cancelled"

// TestCase is an applicant fixture plus the outcome it should produce.
type TestCase struct {
	ID          string              `yaml:"id" json:"id"`
	Name        string              `yaml:"name,omitempty" json:"name,omitempty"`
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	Input       model.ApplicantData `yaml:"inputData" json:"inputData"`
	Expected    Expectation         `yaml:"expectedOutput" json:"expectedOutput"`
}

// Expectation lists the expected outcome. Only the fields that are set are
// compared: a nil Flags slice skips the flag check, an empty one expects no
// flags.
type Expectation struct {
	Decision          model.Decision `yaml:"decision,omitempty" json:"decision,omitempty"`
	Score             *float64       `yaml:"score,omitempty" json:"score,omitempty"`
	Flags             []string       `yaml:"flags,omitempty" json:"flags,omitempty"`
	RequiredDocuments []string       `yaml:"requiredDocuments,omitempty" json:"requiredDocuments,omitempty"`
}

// ErrMissingExpectedDecision is reported for a case whose expectation has no
// decision. The decision is always compared.
var ErrMissingExpectedDecision = errors.New("expected decision missing")

// Difference is one field whose actual value differs from the expectation.
type Difference struct {
	Field    string `json:"field"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
}

// TestExecutionResult is the outcome of running one case.
type TestExecutionResult struct {
	CaseID      string                `json:"caseId"`
	Name        string                `json:"name,omitempty"`
	Status      Status                `json:"status"`
	Actual      *model.DecisionResult `json:"actualOutput,omitempty"`
	Differences []Difference          `json:"differences"`
	Error       string                `json:"error,omitempty"`
	Duration    time.Duration         `json:"-"`
	DurationMs  float64               `json:"durationMs"`
}

// Stats aggregates a batch. Timing covers the cases that actually ran.
type Stats struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Errored  int           `json:"errored"`
	PassRate float64       `json:"passRate"` // percentage of Total
	AvgTime  time.Duration `json:"-"`
	MinTime  time.Duration `json:"-"`
	MaxTime  time.Duration `json:"-"`
	Elapsed  time.Duration `json:"-"`

	AvgTimeMs float64 `json:"avgTimeMs"`
	MinTimeMs float64 `json:"minTimeMs"`
	MaxTimeMs float64 `json:"maxTimeMs"`
	ElapsedMs float64 `json:"elapsedMs"`
}

// Report is the result of RunAll. Results are in input order.
type Report struct {
	Results []TestExecutionResult `json:"results"`
	Stats   Stats                 `json:"stats"`
}

// OK reports whether every case passed.
func (r *Report) OK() bool {
	return r.Stats.Total == r.Stats.Passed
}

// Target is what a case runs against: a workflow or a standalone rule set.
type Target struct {
	Workflow *model.WorkflowDefinition
	Rules    []model.Rule
}

// WorkflowTarget returns a target executing def.
func WorkflowTarget(def *model.WorkflowDefinition) Target {
	return Target{Workflow: def}
}

// RulesTarget returns a target evaluating rules as a rule set.
func RulesTarget(rules []model.Rule) Target {
	return Target{Rules: rules}
}

// Validate checks that exactly one of Workflow and Rules is set.
func (t Target) Validate() error {
	switch {
	case t.Workflow != nil && t.Rules != nil:
		return errors.New("target has both a workflow and rules")
	case t.Workflow == nil && t.Rules == nil:
		return errors.New("target has neither a workflow nor rules")
	}
	return nil
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

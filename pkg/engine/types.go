package engine

import (
	"fmt"
	"time"

	"mercator-hq/arbiter/pkg/model"
)

// RuleOutcome is the result of evaluating a single rule.
type RuleOutcome struct {
	RuleID   string
	Matched  bool
	Actions  []model.Action
	Warnings []string
}

// evaluationState accumulates the running decision of one evaluation. It is
// owned by a single goroutine and never shared between evaluations.
type evaluationState struct {
	record model.ApplicantData
	start  time.Time

	decision   model.Decision
	terminal   bool
	terminalBy string

	score         *float64
	flags         []string
	executedRules []string
	errors        []string
	warnings      []string
	documents     []string
	values        map[string]any
	notifications []model.Notification
	path          []string
	trace         []model.RuleTrace
}

func newEvaluationState(record model.ApplicantData) *evaluationState {
	return &evaluationState{
		record:   record,
		start:    time.Now(),
		decision: model.DecisionReview,
	}
}

// Lookup resolves a field against derived values first, then the record.
// Derived values are written by set_value, calculate and transform actions.
func (s *evaluationState) Lookup(path string) (any, bool) {
	if v, ok := s.values[path]; ok {
		return v, v != nil
	}
	return lookupField(s.record, path)
}

// env builds the expression environment: top-level record fields overlaid
// with derived values, plus the running score.
func (s *evaluationState) env() map[string]any {
	env := make(map[string]any, len(s.record)+len(s.values)+1)
	for k, v := range s.record {
		env[k] = v
	}
	for k, v := range s.values {
		env[k] = v
	}
	if _, ok := env["score"]; !ok && s.score != nil {
		env["score"] = *s.score
	}
	return env
}

func (s *evaluationState) warn(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

// fail records a runtime error and forces the fail-safe decision.
func (s *evaluationState) fail(code string) {
	s.errors = append(s.errors, code)
	s.decision = model.DecisionReview
}

func (s *evaluationState) setValue(field string, v any) {
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[field] = v
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

// result freezes the state into a DecisionResult.
func (s *evaluationState) result() *model.DecisionResult {
	r := &model.DecisionResult{
		Decision:          s.decision,
		Flags:             nonNil(s.flags),
		ExecutedRules:     nonNil(s.executedRules),
		ExecutionTimeMs:   float64(time.Since(s.start).Microseconds()) / 1000,
		Errors:            nonNil(s.errors),
		Warnings:          nonNil(s.warnings),
		RequiredDocuments: s.documents,
		Values:            s.values,
		Notifications:     s.notifications,
		Path:              s.path,
		Trace:             s.trace,
	}
	if s.score != nil {
		score := *s.score
		r.Score = &score
	}
	return r
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

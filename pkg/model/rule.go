package model

import "time"

// Condition is a single field/operator/value comparison.
type Condition struct {
	ID          string   `json:"id"`
	Field       string   `json:"field"`
	Operator    Operator `json:"operator"`
	Value       any      `json:"value,omitempty"`
	DataType    DataType `json:"dataType"`
	Description string   `json:"description,omitempty"`
}

// RuleMetadata carries authoring information for a rule.
type RuleMetadata struct {
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
	Version   int       `json:"version,omitempty"`
}

// Rule is a named, prioritized combination of conditions plus the actions it
// yields when it matches. Priority ranges over 0-100; higher runs first.
type Rule struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Priority        int             `json:"priority"`
	Enabled         bool            `json:"enabled"`
	Conditions      []Condition     `json:"conditions"`
	LogicalOperator LogicalOperator `json:"logicalOperator"`
	Actions         []Action        `json:"actions"`
	Metadata        RuleMetadata    `json:"metadata,omitzero"`
}

// Combinator returns the rule's logical operator, defaulting to AND.
func (r *Rule) Combinator() LogicalOperator {
	if r.LogicalOperator == "" {
		return LogicalAnd
	}
	return r.LogicalOperator
}

// HasActionType returns true if the rule has at least one action of the given type.
func (r *Rule) HasActionType(actionType ActionType) bool {
	for _, action := range r.Actions {
		if action.Type == actionType {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the rule.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	out := *r
	if r.Conditions != nil {
		out.Conditions = make([]Condition, len(r.Conditions))
		for i, c := range r.Conditions {
			c.Value = CloneValue(c.Value)
			out.Conditions[i] = c
		}
	}
	if r.Actions != nil {
		out.Actions = make([]Action, len(r.Actions))
		for i, a := range r.Actions {
			a.Value = CloneValue(a.Value)
			out.Actions[i] = a
		}
	}
	return &out
}

// CloneRules deep copies a rule slice.
func CloneRules(rules []Rule) []Rule {
	if rules == nil {
		return nil
	}
	out := make([]Rule, len(rules))
	for i := range rules {
		out[i] = *rules[i].Clone()
	}
	return out
}

// ActionType identifies what an action does when its rule matches.
type ActionType string

const (
	ActionApprove         ActionType = "approve"
	ActionDecline         ActionType = "decline"
	ActionReview          ActionType = "review"
	ActionSetScore        ActionType = "set_score"
	ActionAddFlag         ActionType = "add_flag"
	ActionRequireDocument ActionType = "require_document"
	ActionSetValue        ActionType = "set_value"
	ActionCalculate       ActionType = "calculate"
	ActionValidate        ActionType = "validate"
	ActionTransform       ActionType = "transform"
	ActionRoute           ActionType = "route"
	ActionNotify          ActionType = "notify"
	ActionLog             ActionType = "log"
)

// ActionTypes lists every supported action type.
var ActionTypes = []ActionType{
	ActionApprove, ActionDecline, ActionReview,
	ActionSetScore, ActionAddFlag, ActionRequireDocument,
	ActionSetValue, ActionCalculate, ActionValidate, ActionTransform,
	ActionRoute, ActionNotify, ActionLog,
}

// IsValid reports whether t is a known action type.
func (t ActionType) IsValid() bool {
	for _, known := range ActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsDecision reports whether the action sets the decision (approve, decline, review).
func (t ActionType) IsDecision() bool {
	return t == ActionApprove || t == ActionDecline || t == ActionReview
}

// IsTerminal reports whether the action locks in a final decision.
func (t ActionType) IsTerminal() bool {
	return t.IsDecision()
}

// RequiresValue reports whether the action is meaningless without a value.
func (t ActionType) RequiresValue() bool {
	switch t {
	case ActionSetScore, ActionAddFlag, ActionRequireDocument,
		ActionCalculate, ActionValidate, ActionRoute:
		return true
	}
	return false
}

// RequiresOutputField reports whether the action writes to a named output field.
func (t ActionType) RequiresOutputField() bool {
	return t == ActionSetValue || t == ActionCalculate
}

// Action is applied when its rule matches, or when an action node is reached.
type Action struct {
	Type        ActionType `json:"type"`
	Value       any        `json:"value,omitempty"`
	OutputField string     `json:"outputField,omitempty"`
	Message     string     `json:"message,omitempty"`
}

package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors
var (
	// ErrNilDefinition indicates Execute was called without a workflow.
	ErrNilDefinition = errors.New("workflow definition is nil")

	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)

// NotValidatedError is returned by Execute when the workflow fails validation.
// Execution never starts on such a workflow.
type NotValidatedError struct {
	WorkflowID string
	Version    int
	Errors     []string
}

// Error returns the error message.
func (e *NotValidatedError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("workflow %s v%d failed validation: %s", e.WorkflowID, e.Version, e.Errors[0])
	}
	return fmt.Sprintf("workflow %s v%d failed validation with %d errors: %s",
		e.WorkflowID, e.Version, len(e.Errors), strings.Join(e.Errors, "; "))
}

// ActionError indicates an action could not be applied. It is reported as a
// warning on the result; evaluation continues.
type ActionError struct {
	RuleID     string
	ActionType string
	Cause      error
}

// Error returns the error message.
func (e *ActionError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("action %s failed: %v", e.ActionType, e.Cause)
	}
	return fmt.Sprintf("rule %s: action %s failed: %v", e.RuleID, e.ActionType, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ActionError) Unwrap() error {
	return e.Cause
}

// CoercionError indicates a value could not be coerced to a condition's data type.
type CoercionError struct {
	Value    any
	DataType string
	Cause    error
}

// Error returns the error message.
func (e *CoercionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot use %v (%T) as %s: %v", e.Value, e.Value, e.DataType, e.Cause)
	}
	return fmt.Sprintf("cannot use %v (%T) as %s", e.Value, e.Value, e.DataType)
}

// Unwrap returns the underlying cause.
func (e *CoercionError) Unwrap() error {
	return e.Cause
}

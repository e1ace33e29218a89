package engine

import (
	"fmt"
	"log/slog"

	"mercator-hq/arbiter/pkg/model"
)

// ConditionMatcher evaluates single conditions against a field source.
type ConditionMatcher interface {
	// Match reports whether the condition holds. It never fails: problems
	// make the condition false and are returned as warnings.
	Match(condition *model.Condition, fields FieldSource) (bool, []string)
}

// DefaultMatcher is the default implementation of ConditionMatcher.
type DefaultMatcher struct {
	logger *slog.Logger
}

// NewDefaultMatcher creates a new default condition matcher.
func NewDefaultMatcher(logger *slog.Logger) *DefaultMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultMatcher{logger: logger}
}

// Match evaluates a condition. An absent field makes every operator false,
// with a warning, except is_null, which is true. The comparison value of a null check is
// ignored.
func (m *DefaultMatcher) Match(condition *model.Condition, fields FieldSource) (bool, []string) {
	if condition == nil {
		return false, []string{"nil condition"}
	}

	actual, present := fields.Lookup(condition.Field)

	if condition.Operator.IsNullCheck() {
		matched := present == (condition.Operator == model.OperatorIsNotNull)
		m.logger.Debug("null check evaluated",
			"field", condition.Field,
			"operator", condition.Operator,
			"present", present,
			"matched", matched,
		)
		return matched, nil
	}

	if !present {
		m.logger.Debug("field not found, condition is false",
			"field", condition.Field,
			"operator", condition.Operator,
		)
		return false, []string{fmt.Sprintf("%s: field %q not found", conditionLabel(condition), condition.Field)}
	}

	matched, err := evaluateOperator(condition.Operator, condition.DataType, actual, condition.Value)
	if err != nil {
		warning := fmt.Sprintf("%s: field %q %s: %v", conditionLabel(condition), condition.Field, condition.Operator, err)
		m.logger.Debug("condition not evaluable",
			"field", condition.Field,
			"operator", condition.Operator,
			"error", err,
		)
		return false, []string{warning}
	}

	m.logger.Debug("condition evaluated",
		"field", condition.Field,
		"operator", condition.Operator,
		"expected", condition.Value,
		"actual", actual,
		"matched", matched,
	)
	return matched, nil
}

func conditionLabel(c *model.Condition) string {
	if c.ID != "" {
		return "condition " + c.ID
	}
	return "condition"
}

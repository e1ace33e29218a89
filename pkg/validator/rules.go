package validator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"mercator-hq/arbiter/pkg/model"
)

// Priority bounds accepted on rules.
const (
	MinPriority = 0
	MaxPriority = 100
)

// ruleChecker validates rules, conditions and actions. Errors make a rule
// unusable; warnings flag rules that evaluate but probably not as intended.
type ruleChecker struct {
	errs  *IssueList
	warns *IssueList
}

func newRuleChecker() *ruleChecker {
	return &ruleChecker{errs: NewIssueList(), warns: NewIssueList()}
}

func (c *ruleChecker) checkRules(nodeID string, rules []model.Rule) {
	seen := make(map[string]bool, len(rules))
	for i := range rules {
		rule := &rules[i]
		if rule.ID != "" {
			if seen[rule.ID] {
				c.warns.Addf(CategoryRule, nodeID, rule.ID, "duplicate rule id")
			}
			seen[rule.ID] = true
		}
		c.checkRule(nodeID, rule)
	}
}

func (c *ruleChecker) checkRule(nodeID string, rule *model.Rule) {
	ruleID := rule.ID
	if ruleID == "" {
		ruleID = rule.Name
		c.errs.Addf(CategoryRule, nodeID, ruleID, "rule id is required")
	}

	if rule.Priority < MinPriority || rule.Priority > MaxPriority {
		c.errs.Addf(CategoryRule, nodeID, ruleID, "priority %d out of range [%d, %d]", rule.Priority, MinPriority, MaxPriority)
	}

	if rule.LogicalOperator != "" && !rule.LogicalOperator.IsValid() {
		issue := c.errs.Addf(CategoryRule, nodeID, ruleID, "unknown logical operator %q", rule.LogicalOperator)
		issue.Suggestion = suggest(string(rule.LogicalOperator), []string{"AND", "OR"})
	}

	if len(rule.Conditions) == 0 {
		c.errs.Addf(CategoryRule, nodeID, ruleID, "rule has no conditions and can never match")
	}
	for i := range rule.Conditions {
		c.checkCondition(nodeID, ruleID, i, &rule.Conditions[i])
	}

	if len(rule.Actions) == 0 {
		c.warns.Addf(CategoryRule, nodeID, ruleID, "rule has no actions")
	}
	for i := range rule.Actions {
		c.checkAction(nodeID, ruleID, i, &rule.Actions[i])
	}

	if !rule.Enabled {
		c.warns.Addf(CategoryRule, nodeID, ruleID, "rule is disabled and will be skipped")
	}
}

func (c *ruleChecker) checkCondition(nodeID, ruleID string, idx int, cond *model.Condition) {
	where := conditionName(idx, cond)

	if strings.TrimSpace(cond.Field) == "" {
		c.errs.Addf(CategoryRule, nodeID, ruleID, "%s: field is required", where)
	}

	if !cond.Operator.IsValid() {
		issue := c.errs.Addf(CategoryRule, nodeID, ruleID, "%s: unknown operator %q", where, cond.Operator)
		issue.Suggestion = suggest(string(cond.Operator), toStrings(model.Operators))
		return
	}

	if cond.DataType != "" && !cond.DataType.IsValid() {
		issue := c.errs.Addf(CategoryRule, nodeID, ruleID, "%s: unknown data type %q", where, cond.DataType)
		issue.Suggestion = suggest(string(cond.DataType), toStrings(model.DataTypes))
	}

	if cond.Operator.IsNullCheck() {
		return
	}
	if cond.Value == nil {
		c.errs.Addf(CategoryRule, nodeID, ruleID, "%s: value is required for operator %s", where, cond.Operator)
		return
	}

	if cond.Operator.RequiresList() {
		items, ok := asList(cond.Value)
		if !ok {
			c.errs.Addf(CategoryRule, nodeID, ruleID, "%s: operator %s requires a list value", where, cond.Operator)
			return
		}
		if cond.Operator == model.OperatorBetween && len(items) != 2 {
			c.errs.Addf(CategoryRule, nodeID, ruleID, "%s: between requires exactly two bounds, got %d", where, len(items))
		}
	}

	if cond.DataType == model.DataTypeBoolean && cond.Operator.IsOrdering() {
		c.warns.Addf(CategoryRule, nodeID, ruleID, "%s: ordering operator %s on boolean field", where, cond.Operator)
	}
}

func (c *ruleChecker) checkAction(nodeID, ruleID string, idx int, action *model.Action) {
	where := fmt.Sprintf("action %d", idx)

	if !action.Type.IsValid() {
		issue := c.errs.Addf(CategoryRule, nodeID, ruleID, "%s: unknown action type %q", where, action.Type)
		issue.Suggestion = suggest(string(action.Type), toStrings(model.ActionTypes))
		return
	}
	where = fmt.Sprintf("action %d (%s)", idx, action.Type)

	if action.Type.RequiresValue() && isBlank(action.Value) {
		c.errs.Addf(CategoryRule, nodeID, ruleID, "%s: value is required", where)
		return
	}
	if action.Type.RequiresOutputField() && action.OutputField == "" {
		c.errs.Addf(CategoryRule, nodeID, ruleID, "%s: outputField is required", where)
	}

	switch action.Type {
	case model.ActionSetScore:
		if !isScoreValue(action.Value) {
			c.errs.Addf(CategoryRule, nodeID, ruleID, "%s: value %v is not a score", where, action.Value)
		}
	case model.ActionCalculate:
		c.checkExpression(nodeID, ruleID, where, action.Value, false)
	case model.ActionValidate:
		c.checkExpression(nodeID, ruleID, where, action.Value, true)
	}
}

func (c *ruleChecker) checkExpression(nodeID, ruleID, where string, value any, asBool bool) {
	src, ok := value.(string)
	if !ok {
		c.errs.Addf(CategoryRule, nodeID, ruleID, "%s: expression must be a string", where)
		return
	}
	if err := compileCheck(src, asBool); err != nil {
		c.errs.Addf(CategoryRule, nodeID, ruleID, "%s: invalid expression: %v", where, err)
	}
}

func compileCheck(src string, asBool bool) error {
	opts := []expr.Option{expr.AllowUndefinedVariables()}
	if asBool {
		opts = append(opts, expr.AsBool())
	}
	_, err := expr.Compile(src, opts...)
	return err
}

func conditionName(idx int, cond *model.Condition) string {
	if cond.ID != "" {
		return fmt.Sprintf("condition %s", cond.ID)
	}
	return fmt.Sprintf("condition %d", idx)
}

func asList(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(val))
		for i, f := range val {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]any, len(val))
		for i, n := range val {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// isScoreValue accepts a number, a numeric string, a signed delta string
// ("+10", "-5") or a {"delta": n} object.
func isScoreValue(v any) bool {
	switch val := v.(type) {
	case float64, float32, int, int32, int64:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return err == nil
	case map[string]any:
		d, ok := val["delta"]
		if !ok {
			return false
		}
		return isScoreValue(d)
	}
	return false
}

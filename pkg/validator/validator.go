package validator

import (
	"log/slog"

	"mercator-hq/arbiter/pkg/model"
)

// Result is the outcome of validating a workflow or a rule set.
type Result struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`

	// Issues holds the typed form of Errors.
	Issues *IssueList `json:"-"`
}

// Err returns the issue list as an error, or nil when valid.
func (r Result) Err() error {
	if r.IsValid || r.Issues == nil {
		return nil
	}
	return r.Issues.ToError()
}

// Validator checks workflow graphs and rule sets before they run.
// It is stateless and safe for concurrent use.
type Validator struct {
	logger *slog.Logger
}

// New creates a validator. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// ValidateWorkflow runs the graph checks and validates every rule embedded
// in the workflow's nodes.
func (v *Validator) ValidateWorkflow(def *model.WorkflowDefinition) Result {
	if def == nil {
		errs := NewIssueList()
		errs.Addf(CategoryStructural, "", "", "workflow definition is nil")
		return buildResult(errs, nil)
	}

	graph := newGraphChecker(def)
	graph.run()

	rules := newRuleChecker()
	for i := range def.Nodes {
		n := &def.Nodes[i]
		if len(n.Data.Rules) > 0 && !n.Type.OwnsRules() {
			rules.warns.Addf(CategoryRule, n.ID, "", "%s node carries rules that are never evaluated", n.Type)
		}
		rules.checkRules(n.ID, n.Data.Rules)
		if n.Type == model.NodeAction && n.Data.Action != nil {
			rules.checkAction(n.ID, "", 0, n.Data.Action)
		}
	}

	errs := graph.errs
	errs.Merge(rules.errs)
	warns := graph.warns
	warns.Merge(rules.warns)

	result := buildResult(errs, warns)
	v.logger.Debug("workflow validated",
		"workflow_id", def.ID,
		"version", def.Version,
		"valid", result.IsValid,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
	)
	return result
}

// ValidateRules validates a standalone rule set.
func (v *Validator) ValidateRules(rules []model.Rule) Result {
	checker := newRuleChecker()
	if len(rules) == 0 {
		checker.warns.Addf(CategoryRule, "", "", "rule set is empty; every evaluation defaults to review")
	}
	checker.checkRules("", rules)
	result := buildResult(checker.errs, checker.warns)
	v.logger.Debug("rule set validated",
		"rules", len(rules),
		"valid", result.IsValid,
		"errors", len(result.Errors),
	)
	return result
}

// ValidateRule validates a single rule.
func (v *Validator) ValidateRule(rule *model.Rule) Result {
	checker := newRuleChecker()
	if rule == nil {
		checker.errs.Addf(CategoryRule, "", "", "rule is nil")
	} else {
		checker.checkRule("", rule)
	}
	return buildResult(checker.errs, checker.warns)
}

var defaultValidator = New(nil)

// ValidateWorkflow validates a workflow with a default validator.
func ValidateWorkflow(def *model.WorkflowDefinition) Result {
	return defaultValidator.ValidateWorkflow(def)
}

// ValidateRules validates a rule set with a default validator.
func ValidateRules(rules []model.Rule) Result {
	return defaultValidator.ValidateRules(rules)
}

// ValidateRule validates one rule with a default validator.
func ValidateRule(rule *model.Rule) Result {
	return defaultValidator.ValidateRule(rule)
}

func buildResult(errs, warns *IssueList) Result {
	result := Result{
		IsValid: !errs.HasErrors(),
		Errors:  errs.Strings(),
		Issues:  errs,
	}
	if warns != nil && warns.HasErrors() {
		result.Warnings = warns.Strings()
	}
	return result
}

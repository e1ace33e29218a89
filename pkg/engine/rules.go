package engine

import (
	"mercator-hq/arbiter/pkg/model"
)

// EvaluateRule evaluates every condition of rule and combines them with the
// rule's logical operator. A rule without conditions never matches. On a
// match the rule's actions are returned in declaration order. The enabled
// flag is not consulted here; callers filter disabled rules.
func (e *DecisionEngine) EvaluateRule(rule *model.Rule, record model.ApplicantData) RuleOutcome {
	return e.evaluateRule(rule, RecordSource(record))
}

func (e *DecisionEngine) evaluateRule(rule *model.Rule, fields FieldSource) RuleOutcome {
	outcome := RuleOutcome{RuleID: rule.ID}
	if len(rule.Conditions) == 0 {
		outcome.Warnings = append(outcome.Warnings, "rule "+rule.ID+": no conditions")
		return outcome
	}

	anyMatched, allMatched := false, true
	for i := range rule.Conditions {
		matched, warnings := e.matcher.Match(&rule.Conditions[i], fields)
		outcome.Warnings = append(outcome.Warnings, warnings...)
		anyMatched = anyMatched || matched
		allMatched = allMatched && matched
	}

	switch rule.Combinator() {
	case model.LogicalOr:
		outcome.Matched = anyMatched
	default:
		outcome.Matched = allMatched
	}

	if outcome.Matched {
		outcome.Actions = append([]model.Action(nil), rule.Actions...)
	}

	e.logger.Debug("rule evaluated",
		"rule_id", rule.ID,
		"priority", rule.Priority,
		"logical_operator", rule.Combinator(),
		"matched", outcome.Matched,
	)
	return outcome
}

// EvaluateRuleSet evaluates the enabled rules in descending priority order
// and applies the actions of every matching rule. The first approve,
// decline or review decides; later rules still contribute flags, scores and other
// side effects. With no terminal action the decision is review.
func (e *DecisionEngine) EvaluateRuleSet(rules []model.Rule, record model.ApplicantData) *model.DecisionResult {
	state := newEvaluationState(record)
	e.applyRuleSet(state, "", rules)
	return state.result()
}

// ruleSetOutcome summarises one pass over a rule set.
type ruleSetOutcome struct {
	matched  bool // at least one rule matched
	terminal bool // a matching rule carried a decision action
}

// applyRuleSet evaluates rules against the state and applies matched actions.
func (e *DecisionEngine) applyRuleSet(state *evaluationState, nodeID string, rules []model.Rule) ruleSetOutcome {
	var out ruleSetOutcome
	for _, rule := range orderRules(rules) {
		outcome := e.evaluateRule(rule, state)
		state.warnings = append(state.warnings, outcome.Warnings...)

		if e.config.EnableTrace {
			trace := model.RuleTrace{
				NodeID:   nodeID,
				RuleID:   rule.ID,
				Matched:  outcome.Matched,
				Priority: rule.Priority,
				Warnings: outcome.Warnings,
			}
			for _, a := range outcome.Actions {
				trace.Actions = append(trace.Actions, string(a.Type))
			}
			state.trace = append(state.trace, trace)
		}

		if !outcome.Matched {
			continue
		}
		out.matched = true
		state.executedRules = append(state.executedRules, rule.ID)

		for i := range outcome.Actions {
			action := &outcome.Actions[i]
			if action.Type.IsTerminal() {
				out.terminal = true
			}
			if err := e.actions.apply(state, rule.ID, action); err != nil {
				state.warn("%v", err)
			}
		}
	}
	return out
}

package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"mercator-hq/arbiter/pkg/model"
)

// Flag added when a validate action's expression does not hold.
const FlagValidationFailed = "validation_failed"

// Transform operations accepted by the transform action.
const (
	TransformUppercase = "uppercase"
	TransformLowercase = "lowercase"
	TransformTrim      = "trim"
	TransformRound     = "round"
	TransformAbs       = "abs"
	TransformNegate    = "negate"
)

var errMissingOutputField = errors.New("outputField is required")

// actionExecutor applies actions to the running evaluation state.
type actionExecutor struct {
	logger *slog.Logger
	exprs  *ExpressionEvaluator
}

func newActionExecutor(logger *slog.Logger, exprs *ExpressionEvaluator) *actionExecutor {
	return &actionExecutor{logger: logger, exprs: exprs}
}

// apply applies one action on behalf of ruleID (empty for action nodes).
func (x *actionExecutor) apply(state *evaluationState, ruleID string, action *model.Action) error {
	var err error
	switch action.Type {
	case model.ActionApprove, model.ActionDecline, model.ActionReview:
		x.executeTerminal(state, ruleID, action)

	case model.ActionSetScore:
		err = x.executeSetScore(state, action)

	case model.ActionAddFlag:
		err = collectStrings(action.Value, func(s string) { state.flags = appendUnique(state.flags, s) })

	case model.ActionRequireDocument:
		err = collectStrings(action.Value, func(s string) { state.documents = appendUnique(state.documents, s) })

	case model.ActionSetValue:
		if action.OutputField == "" {
			err = errMissingOutputField
			break
		}
		state.setValue(action.OutputField, model.CloneValue(action.Value))

	case model.ActionCalculate:
		err = x.executeCalculate(state, action)

	case model.ActionValidate:
		err = x.executeValidate(state, ruleID, action)

	case model.ActionTransform:
		err = x.executeTransform(state, action)

	case model.ActionRoute:
		route, ok := action.Value.(string)
		if !ok || route == "" {
			err = fmt.Errorf("route target must be a non-empty string, got %v", action.Value)
			break
		}
		state.setValue("route", route)

	case model.ActionNotify:
		target, _ := action.Value.(string)
		state.notifications = append(state.notifications, model.Notification{
			Type: model.ActionNotify, RuleID: ruleID, Target: target, Message: action.Message,
		})

	case model.ActionLog:
		msg := action.Message
		if msg == "" {
			msg = fmt.Sprint(action.Value)
		}
		state.notifications = append(state.notifications, model.Notification{
			Type: model.ActionLog, RuleID: ruleID, Message: msg,
		})
		x.logger.Info("rule log action", "rule_id", ruleID, "message", msg)

	default:
		err = fmt.Errorf("unknown action type %q", action.Type)
	}

	if err != nil {
		return &ActionError{RuleID: ruleID, ActionType: string(action.Type), Cause: err}
	}
	return nil
}

// executeTerminal applies approve, decline or review. The first decision
// wins; later ones are ignored with a warning.
func (x *actionExecutor) executeTerminal(state *evaluationState, ruleID string, action *model.Action) {
	decision := model.Decision(action.Type)
	if state.terminal {
		if decision != state.decision {
			state.warn("rule %s: %s ignored, decision already %s by rule %s", ruleID, decision, state.decision, state.terminalBy)
		}
		return
	}
	state.decision = decision
	state.terminal = true
	state.terminalBy = ruleID
	if action.Message != "" {
		state.setValue("reason", action.Message)
	}
}

// executeSetScore sets the score, or adjusts it for signed and delta values.
func (x *actionExecutor) executeSetScore(state *evaluationState, action *model.Action) error {
	value, delta, err := parseScore(action.Value)
	if err != nil {
		return err
	}
	current := 0.0
	if state.score != nil {
		current = *state.score
	}
	if delta {
		value += current
	}
	state.score = &value
	return nil
}

func (x *actionExecutor) executeCalculate(state *evaluationState, action *model.Action) error {
	if action.OutputField == "" {
		return errMissingOutputField
	}
	src, ok := action.Value.(string)
	if !ok {
		return fmt.Errorf("expression must be a string, got %T", action.Value)
	}
	result, err := x.exprs.Evaluate(src, state.env())
	if err != nil {
		return err
	}
	if f, ok := result.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
		return fmt.Errorf("expression %q produced %v", src, f)
	}
	state.setValue(action.OutputField, model.NormalizeValue(result))
	return nil
}

func (x *actionExecutor) executeValidate(state *evaluationState, ruleID string, action *model.Action) error {
	src, ok := action.Value.(string)
	if !ok {
		return fmt.Errorf("expression must be a string, got %T", action.Value)
	}
	valid, err := x.exprs.EvaluateBool(src, state.env())
	if err != nil {
		return err
	}
	if !valid {
		msg := action.Message
		if msg == "" {
			msg = fmt.Sprintf("validation %q failed", src)
		}
		if ruleID != "" {
			msg = fmt.Sprintf("rule %s: %s", ruleID, msg)
		}
		state.warnings = append(state.warnings, msg)
		state.flags = appendUnique(state.flags, FlagValidationFailed)
	}
	return nil
}

// executeTransform applies the operation named by Value to the field named
// by OutputField and stores the result as a derived value.
func (x *actionExecutor) executeTransform(state *evaluationState, action *model.Action) error {
	if action.OutputField == "" {
		return errMissingOutputField
	}
	op, _ := action.Value.(string)
	current, ok := state.Lookup(action.OutputField)
	if !ok {
		return fmt.Errorf("field %q not found", action.OutputField)
	}

	var out any
	switch strings.ToLower(op) {
	case TransformUppercase, TransformLowercase, TransformTrim:
		s, err := toText(current)
		if err != nil {
			return err
		}
		switch strings.ToLower(op) {
		case TransformUppercase:
			out = strings.ToUpper(s)
		case TransformLowercase:
			out = strings.ToLower(s)
		default:
			out = strings.TrimSpace(s)
		}
	case TransformRound, TransformAbs, TransformNegate:
		f, err := toNumber(current)
		if err != nil {
			return err
		}
		switch strings.ToLower(op) {
		case TransformRound:
			out = math.Round(f)
		case TransformAbs:
			out = math.Abs(f)
		default:
			out = -f
		}
	default:
		return fmt.Errorf("unknown transform %q", op)
	}

	state.setValue(action.OutputField, out)
	return nil
}

// parseScore accepts a number, a numeric string, a signed string ("+10",
// "-5") or {"delta": n}. Signed strings and delta objects adjust the score.
func parseScore(v any) (value float64, delta bool, err error) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		f, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return 0, false, fmt.Errorf("score %q is not a number", val)
		}
		return f, strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-"), nil
	case map[string]any:
		d, ok := val["delta"]
		if !ok {
			return 0, false, fmt.Errorf("score object needs a delta")
		}
		f, nerr := toNumber(d)
		if nerr != nil {
			return 0, false, nerr
		}
		return f, true, nil
	}
	f, nerr := toNumber(v)
	if nerr != nil {
		return 0, false, nerr
	}
	return f, false, nil
}

// collectStrings calls add for a string value or each string of a list.
func collectStrings(v any, add func(string)) error {
	if s, ok := v.(string); ok && s != "" {
		add(s)
		return nil
	}
	if items, ok := toList(v); ok && len(items) > 0 {
		for _, item := range items {
			s, ok := item.(string)
			if !ok || s == "" {
				return fmt.Errorf("list value %v is not a string", item)
			}
			add(s)
		}
		return nil
	}
	return fmt.Errorf("value must be a string or list of strings, got %v", v)
}

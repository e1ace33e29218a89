package engine

import (
	"fmt"
	"strings"

	"mercator-hq/arbiter/pkg/model"
)

// evaluateOperator applies op to a present field value. Failures that make
// the comparison meaningless are returned as errors; the caller turns them
// into a false result plus a warning.
func evaluateOperator(op model.Operator, dt model.DataType, actual, expected any) (bool, error) {
	if dt == "" {
		dt = inferType(actual, firstBound(op, expected))
	}

	switch op {
	case model.OperatorEquals:
		return evaluateEquals(dt, actual, expected)

	case model.OperatorNotEquals:
		equal, err := evaluateEquals(dt, actual, expected)
		return !equal, err

	case model.OperatorGreaterThan:
		return evaluateOrdering(dt, actual, expected, func(c int) bool { return c > 0 })

	case model.OperatorGreaterThanOrEqual:
		return evaluateOrdering(dt, actual, expected, func(c int) bool { return c >= 0 })

	case model.OperatorLessThan:
		return evaluateOrdering(dt, actual, expected, func(c int) bool { return c < 0 })

	case model.OperatorLessThanOrEqual:
		return evaluateOrdering(dt, actual, expected, func(c int) bool { return c <= 0 })

	case model.OperatorBetween:
		return evaluateBetween(dt, actual, expected)

	case model.OperatorContains:
		return evaluateContains(actual, expected)

	case model.OperatorNotContains:
		contains, err := evaluateContains(actual, expected)
		return !contains, err

	case model.OperatorIn:
		return evaluateIn(dt, actual, expected)

	case model.OperatorNotIn:
		in, err := evaluateIn(dt, actual, expected)
		return !in, err

	case model.OperatorIsNull:
		return false, nil

	case model.OperatorIsNotNull:
		return true, nil

	default:
		return false, fmt.Errorf("unknown operator: %q", op)
	}
}

// firstBound returns the value used for type inference: the first element
// for list-valued operators, the value itself otherwise.
func firstBound(op model.Operator, expected any) any {
	if !op.RequiresList() {
		return expected
	}
	if items, ok := toList(expected); ok && len(items) > 0 {
		return items[0]
	}
	return nil
}

func coercePair(dt model.DataType, actual, expected any) (any, any, error) {
	a, err := coerce(actual, dt)
	if err != nil {
		return nil, nil, fmt.Errorf("field value: %w", err)
	}
	e, err := coerce(expected, dt)
	if err != nil {
		return nil, nil, fmt.Errorf("comparison value: %w", err)
	}
	return a, e, nil
}

// evaluateEquals compares both sides after coercion to dt.
func evaluateEquals(dt model.DataType, actual, expected any) (bool, error) {
	a, e, err := coercePair(dt, actual, expected)
	if err != nil {
		return false, err
	}
	return valuesEqual(a, e), nil
}

// evaluateOrdering compares numbers and dates. Text, booleans and lists
// have no ordering.
func evaluateOrdering(dt model.DataType, actual, expected any, accept func(int) bool) (bool, error) {
	a, e, err := coercePair(dt, actual, expected)
	if err != nil {
		return false, err
	}
	c, ok := compareValues(a, e)
	if !ok {
		return false, fmt.Errorf("ordering is not defined for %s values", dt)
	}
	return accept(c), nil
}

// evaluateBetween checks lower <= actual <= upper.
func evaluateBetween(dt model.DataType, actual, expected any) (bool, error) {
	bounds, ok := toList(expected)
	if !ok || len(bounds) != 2 {
		return false, fmt.Errorf("between requires exactly two bounds, got %v", expected)
	}
	a, err := coerce(actual, dt)
	if err != nil {
		return false, fmt.Errorf("field value: %w", err)
	}
	lo, err := coerce(bounds[0], dt)
	if err != nil {
		return false, fmt.Errorf("lower bound: %w", err)
	}
	hi, err := coerce(bounds[1], dt)
	if err != nil {
		return false, fmt.Errorf("upper bound: %w", err)
	}

	order, ok := compareValues(lo, hi)
	if !ok {
		return false, fmt.Errorf("ordering is not defined for %s values", dt)
	}
	if order > 0 {
		return false, fmt.Errorf("bounds out of order: %v > %v", bounds[0], bounds[1])
	}

	cLo, _ := compareValues(a, lo)
	cHi, _ := compareValues(a, hi)
	return cLo >= 0 && cHi <= 0, nil
}

// evaluateContains is a substring test on text and a membership test on
// lists, chosen by the runtime type of the field value.
func evaluateContains(actual, expected any) (bool, error) {
	if s, ok := actual.(string); ok {
		sub, err := toText(expected)
		if err != nil {
			return false, fmt.Errorf("comparison value: %w", err)
		}
		return strings.Contains(s, sub), nil
	}
	if items, ok := toList(actual); ok {
		return containsElement(items, expected), nil
	}
	return false, fmt.Errorf("contains requires a text or list field, got %T", actual)
}

// evaluateIn checks membership of the field value in the comparison list.
func evaluateIn(dt model.DataType, actual, expected any) (bool, error) {
	items, ok := toList(expected)
	if !ok {
		return false, fmt.Errorf("%v is not a list", expected)
	}
	a, err := coerce(actual, dt)
	if err != nil {
		return false, fmt.Errorf("field value: %w", err)
	}
	for _, item := range items {
		e, err := coerce(item, dt)
		if err != nil {
			continue
		}
		if valuesEqual(a, e) {
			return true, nil
		}
	}
	return false, nil
}

func containsElement(items []any, element any) bool {
	for _, item := range items {
		if looseEqual(item, element) {
			return true
		}
	}
	return false
}

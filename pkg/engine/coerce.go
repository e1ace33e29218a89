package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"mercator-hq/arbiter/pkg/model"
)

// dateLayouts are tried in order when parsing date strings.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// inferType picks a data type for a condition that does not declare one:
// numeric if either side is a number, then by the field's runtime type.
func inferType(actual, expected any) model.DataType {
	if isNumber(actual) || isNumber(expected) {
		return model.DataTypeNumber
	}
	switch actual.(type) {
	case bool:
		return model.DataTypeBoolean
	case time.Time:
		return model.DataTypeDate
	}
	if _, ok := toList(actual); ok {
		return model.DataTypeArray
	}
	return model.DataTypeString
}

// coerce converts v to the canonical Go value for dt:
// float64, string, bool, time.Time or []any.
func coerce(v any, dt model.DataType) (any, error) {
	switch dt {
	case model.DataTypeNumber:
		return toNumber(v)
	case model.DataTypeString:
		return toText(v)
	case model.DataTypeBoolean:
		return toBool(v)
	case model.DataTypeDate:
		return toDate(v)
	case model.DataTypeArray:
		items, ok := toList(v)
		if !ok {
			return nil, &CoercionError{Value: v, DataType: string(dt)}
		}
		return items, nil
	default:
		return nil, &CoercionError{Value: v, DataType: string(dt), Cause: errors.New("unknown data type")}
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	}
	return false
}

func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, &CoercionError{Value: v, DataType: "number", Cause: err}
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, &CoercionError{Value: v, DataType: "number"}
		}
		return f, nil
	}
	return 0, &CoercionError{Value: v, DataType: "number"}
}

func toText(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case bool:
		return strconv.FormatBool(s), nil
	case time.Time:
		return s.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return s.String(), nil
	}
	if isNumber(v) {
		f, _ := toNumber(v)
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return "", &CoercionError{Value: v, DataType: "string"}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		}
	}
	if isNumber(v) {
		f, _ := toNumber(v)
		switch f {
		case 1:
			return true, nil
		case 0:
			return false, nil
		}
	}
	return false, &CoercionError{Value: v, DataType: "boolean"}
}

func toDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC(), nil
		}
		return time.Time{}, &CoercionError{Value: v, DataType: "date"}
	}
	if isNumber(v) {
		f, _ := toNumber(v)
		return time.Unix(int64(f), 0).UTC(), nil
	}
	return time.Time{}, &CoercionError{Value: v, DataType: "date"}
}

// toList accepts any slice or array value.
func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// compareValues orders two coerced values of the same data type.
// It returns -1, 0 or 1, and false when the type has no ordering.
func compareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}
	return 0, false
}

// valuesEqual compares two coerced values of the same data type.
func valuesEqual(a, b any) bool {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !looseEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}

// looseEqual compares two raw values by first coercing both to the type
// inferred from them. Used for list elements, which carry no declared type.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	dt := inferType(a, b)
	ca, errA := coerce(a, dt)
	cb, errB := coerce(b, dt)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return valuesEqual(ca, cb)
}

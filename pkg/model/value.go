package model

import "time"

// ApplicantData is the open field bag evaluated against rules. Keys may be
// dotted paths into nested maps.
type ApplicantData map[string]any

// Clone returns a deep copy of the record.
func (d ApplicantData) Clone() ApplicantData {
	if d == nil {
		return nil
	}
	return ApplicantData(CloneValue(map[string]any(d)).(map[string]any))
}

// CloneValue deep copies maps and slices; scalars are returned as is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case ApplicantData:
		return ApplicantData(CloneValue(map[string]any(val)).(map[string]any))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []float64:
		return append([]float64(nil), val...)
	case []int:
		return append([]int(nil), val...)
	default:
		return v
	}
}

// NormalizeValue maps a decoded value onto the canonical value shapes used by
// the engine: float64 for every number, []any for lists, map[string]any for
// objects and RFC 3339 strings for timestamps. Two definitions that encode the
// same document normalize to deep-equal values.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, float64:
		return val
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeValue(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case []float64:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case []int:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = float64(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = NormalizeValue(item)
		}
		return out
	case ApplicantData:
		return NormalizeValue(map[string]any(val))
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if ks, ok := k.(string); ok {
				out[ks] = NormalizeValue(item)
			}
		}
		return out
	default:
		return val
	}
}

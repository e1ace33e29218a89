package engine

import (
	"strconv"
	"strings"

	"mercator-hq/arbiter/pkg/model"
)

// FieldSource resolves field paths for condition evaluation.
type FieldSource interface {
	// Lookup returns the value at path and whether it is present.
	// A present field holding nil is reported as absent.
	Lookup(path string) (any, bool)
}

// RecordSource adapts an applicant record to FieldSource.
type RecordSource model.ApplicantData

// Lookup resolves path in the record.
func (r RecordSource) Lookup(path string) (any, bool) {
	return lookupField(model.ApplicantData(r), path)
}

// lookupField resolves a dotted path such as applicationData.creditScore.
// A literal key containing dots wins over nested traversal. Numeric segments
// index into lists.
func lookupField(record model.ApplicantData, path string) (any, bool) {
	if record == nil || path == "" {
		return nil, false
	}
	if v, ok := record[path]; ok {
		return v, v != nil
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}

	var current any = map[string]any(record)
	for _, part := range strings.Split(path, ".") {
		next, ok := step(current, part)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, current != nil
}

func step(current any, part string) (any, bool) {
	switch node := current.(type) {
	case map[string]any:
		v, ok := node[part]
		return v, ok
	case model.ApplicantData:
		v, ok := node[part]
		return v, ok
	case map[any]any:
		v, ok := node[part]
		return v, ok
	case []any:
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 || idx >= len(node) {
			return nil, false
		}
		return node[idx], true
	}
	return nil, false
}

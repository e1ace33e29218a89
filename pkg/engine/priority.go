package engine

import (
	"sort"

	"mercator-hq/arbiter/pkg/model"
)

// orderRules returns the enabled rules sorted by descending priority.
// Rules of equal priority keep their declaration order.
func orderRules(rules []model.Rule) []*model.Rule {
	ordered := make([]*model.Rule, 0, len(rules))
	for i := range rules {
		if rules[i].Enabled {
			ordered = append(ordered, &rules[i])
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return ordered
}

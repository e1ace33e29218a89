package validator

import (
	"fmt"
	"strings"
)

// suggest returns a "Did you mean" hint for an unknown name, or the list of
// valid names when nothing is close.
func suggest(unknown string, valid []string) string {
	if len(valid) == 0 {
		return ""
	}

	minDistance := 1000
	var bestMatch string
	for _, candidate := range valid {
		dist := levenshteinDistance(strings.ToLower(unknown), candidate)
		if dist < minDistance {
			minDistance = dist
			bestMatch = candidate
		}
	}

	if minDistance < 5 {
		return fmt.Sprintf("did you mean %q?", bestMatch)
	}
	return fmt.Sprintf("valid values: %s", strings.Join(valid, ", "))
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}

	len1, len2 := len(s1), len(s2)
	prev := make([]int, len2+1)
	curr := make([]int, len2+1)
	for j := 0; j <= len2; j++ {
		prev[j] = j
	}

	for i := 1; i <= len1; i++ {
		curr[0] = i
		for j := 1; j <= len2; j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len2]
}

// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeStats counts the elements DedupeAndTrimFunc dropped.
type DedupeStats struct {
	Blank      int
	Duplicates int
}

// DedupeAndTrimFunc trims whitespace from each element, drops the ones that
// end up empty, applies transform to the rest and removes duplicates of the
// transformed value. Order of first appearance is preserved. A nil transform
// leaves the trimmed value as is.
//
// Example:
//
//	DedupeAndTrimFunc([]string{" ab ", "AB", ""}, strings.ToUpper)
//	// Returns: []string{"AB"}, DedupeStats{Blank: 1, Duplicates: 1}
func DedupeAndTrimFunc(values []string, transform func(string) string) ([]string, DedupeStats) {
	var stats DedupeStats
	if len(values) == 0 {
		return values, stats
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			stats.Blank++
			continue
		}
		if transform != nil {
			trimmed = transform(trimmed)
		}
		if _, ok := seen[trimmed]; ok {
			stats.Duplicates++
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}

	return result, stats
}

// DedupeAndTrimLower is DedupeAndTrimFunc with lower-casing. Useful for
// option lists such as sink names.
func DedupeAndTrimLower(values []string) []string {
	out, _ := DedupeAndTrimFunc(values, strings.ToLower)
	return out
}

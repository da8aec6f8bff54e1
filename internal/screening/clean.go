package screening

import (
	"strings"

	pstrings "panval/pkg/platform/strings"
)

// Clean normalizes raw records into the set of distinct identifiers: nil
// records are dropped, the rest are trimmed, blank ones dropped, and what
// remains is upper-cased and deduplicated. Order of first appearance is kept.
func Clean(raw []*string) []string {
	cleaned, _ := CleanWithStats(raw)
	return cleaned
}

// CleanWithStats is Clean that also reports why records were dropped.
func CleanWithStats(raw []*string) ([]string, CleanStats) {
	var stats CleanStats
	present := make([]string, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			stats.Null++
			continue
		}
		present = append(present, *r)
	}

	cleaned, dd := pstrings.DedupeAndTrimFunc(present, strings.ToUpper)
	if cleaned == nil {
		cleaned = []string{}
	}
	stats.Blank = dd.Blank
	stats.Duplicates = dd.Duplicates
	return cleaned, stats
}

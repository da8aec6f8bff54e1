package screening

import (
	"errors"
	"fmt"
)

// ErrInternalConsistency means the counts contradict each other, e.g. more
// classified identifiers than raw records. Downstream consumers trust the
// summary, so it is never reported in this state.
var ErrInternalConsistency = errors.New("internal consistency error")

// Summarize counts the classified results against the raw input size.
// MissingOrIncomplete covers raw records that were null, blank or duplicate.
func Summarize(totalRaw int, results Results) (Summary, error) {
	summary := Summary{
		TotalProcessed: totalRaw,
		TotalValid:     results.Count(StatusValid),
		TotalInvalid:   results.Count(StatusInvalid),
	}
	summary.MissingOrIncomplete = totalRaw - (summary.TotalValid + summary.TotalInvalid)
	if summary.MissingOrIncomplete < 0 {
		return Summary{}, fmt.Errorf("%w: %d classified identifiers from %d raw records",
			ErrInternalConsistency, summary.TotalValid+summary.TotalInvalid, totalRaw)
	}
	return summary, nil
}

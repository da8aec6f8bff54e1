package screening

import (
	"time"

	"github.com/google/uuid"
)

// Status is the classification outcome for a cleaned identifier.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
)

func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	return s == StatusValid || s == StatusInvalid
}

// Violation names a single format rule an identifier breaks.
type Violation string

const (
	ViolationLength             Violation = "invalid_length"
	ViolationPrefix             Violation = "invalid_prefix"
	ViolationDigits             Violation = "invalid_digits"
	ViolationCheckLetter        Violation = "invalid_check_letter"
	ViolationAdjacentRepetition Violation = "adjacent_repetition"
	ViolationSequentialPrefix   Violation = "sequential_prefix"
	ViolationSequentialDigits   Violation = "sequential_digits"
)

// Result is the classification of one cleaned identifier.
type Result struct {
	Identifier string
	Status     Status
	Violations []Violation
}

// Results is an order-preserving list with one entry per cleaned identifier.
type Results []Result

// ByIdentifier returns the identifier -> status mapping view of the results.
func (r Results) ByIdentifier() map[string]Status {
	out := make(map[string]Status, len(r))
	for _, res := range r {
		out[res.Identifier] = res.Status
	}
	return out
}

// Count returns how many results carry the given status.
func (r Results) Count(status Status) int {
	n := 0
	for _, res := range r {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Summary aggregates a pipeline run.
type Summary struct {
	TotalProcessed      int `json:"total_processed"`
	TotalValid          int `json:"total_valid"`
	TotalInvalid        int `json:"total_invalid"`
	MissingOrIncomplete int `json:"missing_or_incomplete"`
}

// CleanStats breaks the dropped raw records down by reason.
type CleanStats struct {
	Null       int
	Blank      int
	Duplicates int
}

// Dropped is the total number of raw records that did not reach classification.
func (c CleanStats) Dropped() int {
	return c.Null + c.Blank + c.Duplicates
}

// Report is everything a single pipeline run produced.
type Report struct {
	RunID      uuid.UUID
	Results    Results
	Summary    Summary
	CleanStats CleanStats
	CacheHits  int
	StartedAt  time.Time
	Duration   time.Duration
}

// Raw wraps a literal into a raw record. Handy for tests and ad-hoc callers.
func Raw(s string) *string {
	return &s
}

// RawRecords converts plain strings into raw records.
func RawRecords(values ...string) []*string {
	out := make([]*string, len(values))
	for i := range values {
		out[i] = &values[i]
	}
	return out
}

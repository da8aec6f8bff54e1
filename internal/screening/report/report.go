// Package report renders pipeline output as plain text for terminals and logs.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/google/uuid"

	"panval/internal/screening"
)

// Sink prints the summary table, and optionally every classification, to w.
type Sink struct {
	mu      sync.Mutex
	w       io.Writer
	details bool
}

type Option func(*Sink)

// WithDetails also prints one line per classified identifier.
func WithDetails(details bool) Option {
	return func(s *Sink) {
		s.details = details
	}
}

func New(w io.Writer, opts ...Option) *Sink {
	s := &Sink{w: w}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Sink) SaveResults(_ context.Context, runID uuid.UUID, results screening.Results) error {
	if !s.details {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteResults(s.w, runID, results)
}

func (s *Sink) SaveSummary(_ context.Context, runID uuid.UUID, summary screening.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteSummary(s.w, runID, summary)
}

// WriteResults prints identifier, status and violations in aligned columns.
func WriteResults(w io.Writer, runID uuid.UUID, results screening.Results) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run %s\n", runID)
	fmt.Fprintln(tw, "PAN\tSTATUS\tVIOLATIONS")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Identifier, r.Status, FormatViolations(r.Violations))
	}
	return tw.Flush()
}

// WriteSummary prints the four summary counts.
func WriteSummary(w io.Writer, runID uuid.UUID, summary screening.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Summary for run %s\n", runID)
	fmt.Fprintf(tw, "Total processed\t%d\n", summary.TotalProcessed)
	fmt.Fprintf(tw, "Valid\t%d\n", summary.TotalValid)
	fmt.Fprintf(tw, "Invalid\t%d\n", summary.TotalInvalid)
	fmt.Fprintf(tw, "Missing or incomplete\t%d\n", summary.MissingOrIncomplete)
	return tw.Flush()
}

// FormatViolations joins violations for display; "-" when there are none.
func FormatViolations(vs []screening.Violation) string {
	if len(vs) == 0 {
		return "-"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

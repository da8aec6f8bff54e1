// Package multi fans pipeline output out to several sinks.
package multi

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"panval/internal/screening"
	"panval/internal/screening/ports"
)

// Named pairs a sink with the name used in error messages.
type Named struct {
	Name string
	Sink ports.Sink
}

// Sink writes to each sink in order and stops at the first failure. Sinks
// earlier in the list may already hold the run when a later one fails; a
// re-run produces a new run ID, so nothing is overwritten.
type Sink struct {
	sinks []Named
}

func New(sinks ...Named) (*Sink, error) {
	if len(sinks) == 0 {
		return nil, fmt.Errorf("at least one sink is required")
	}
	for _, s := range sinks {
		if s.Sink == nil {
			return nil, fmt.Errorf("sink %q is nil", s.Name)
		}
	}
	return &Sink{sinks: sinks}, nil
}

func (m *Sink) SaveResults(ctx context.Context, runID uuid.UUID, results screening.Results) error {
	for _, s := range m.sinks {
		if err := s.Sink.SaveResults(ctx, runID, results); err != nil {
			return fmt.Errorf("%s sink: %w", s.Name, err)
		}
	}
	return nil
}

func (m *Sink) SaveSummary(ctx context.Context, runID uuid.UUID, summary screening.Summary) error {
	for _, s := range m.sinks {
		if err := s.Sink.SaveSummary(ctx, runID, summary); err != nil {
			return fmt.Errorf("%s sink: %w", s.Name, err)
		}
	}
	return nil
}

// Package ports declares the collaborators the screening pipeline talks to.
// Stores live behind these interfaces so the core stays free of I/O.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Source,Sink,Cache

import (
	"context"

	"github.com/google/uuid"

	"panval/internal/screening"
)

// Source yields the raw dataset. A nil element is a missing (NULL) record.
type Source interface {
	Load(ctx context.Context) ([]*string, error)
}

// Sink receives the classified results and the run summary.
type Sink interface {
	SaveResults(ctx context.Context, runID uuid.UUID, results screening.Results) error
	SaveSummary(ctx context.Context, runID uuid.UUID, summary screening.Summary) error
}

// Cache memoizes classifications across runs. Lookup returns only the
// identifiers it knows; missing keys are not an error.
type Cache interface {
	Lookup(ctx context.Context, identifiers []string) (map[string]screening.Result, error)
	Store(ctx context.Context, results screening.Results) error
}

// Package memory holds in-process sources, sinks and caches. They back the
// check command and the service tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"panval/internal/screening"
	"panval/pkg/platform/sentinel"
)

// Source serves a fixed raw dataset.
type Source struct {
	records []*string
}

func NewSource(records []*string) *Source {
	return &Source{records: records}
}

// Load returns a copy of the records so callers cannot mutate the source.
func (s *Source) Load(_ context.Context) ([]*string, error) {
	return slices.Clone(s.records), nil
}

// Sink keeps results and summaries per run.
type Sink struct {
	mu        sync.RWMutex
	results   map[uuid.UUID]screening.Results
	summaries map[uuid.UUID]screening.Summary
}

func NewSink() *Sink {
	return &Sink{
		results:   make(map[uuid.UUID]screening.Results),
		summaries: make(map[uuid.UUID]screening.Summary),
	}
}

func (s *Sink) SaveResults(_ context.Context, runID uuid.UUID, results screening.Results) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[runID]; ok {
		return fmt.Errorf("results for run %s: %w", runID, sentinel.ErrConflict)
	}
	s.results[runID] = slices.Clone(results)
	return nil
}

func (s *Sink) SaveSummary(_ context.Context, runID uuid.UUID, summary screening.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.summaries[runID]; ok {
		return fmt.Errorf("summary for run %s: %w", runID, sentinel.ErrConflict)
	}
	s.summaries[runID] = summary
	return nil
}

func (s *Sink) Results(_ context.Context, runID uuid.UUID) (screening.Results, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, ok := s.results[runID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return slices.Clone(results), nil
}

func (s *Sink) Summary(_ context.Context, runID uuid.UUID) (screening.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[runID]
	if !ok {
		return screening.Summary{}, sentinel.ErrNotFound
	}
	return summary, nil
}

// Cache memoizes classifications for the lifetime of the process.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]screening.Result
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]screening.Result)}
}

func (c *Cache) Lookup(_ context.Context, identifiers []string) (map[string]screening.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]screening.Result)
	for _, id := range identifiers {
		if r, ok := c.entries[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (c *Cache) Store(_ context.Context, results screening.Results) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range results {
		c.entries[r.Identifier] = r
	}
	return nil
}

// Len reports the number of memoized identifiers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

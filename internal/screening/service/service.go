package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"panval/internal/platform/logger"
	"panval/internal/screening"
	"panval/internal/screening/metrics"
	"panval/internal/screening/ports"
	"panval/pkg/fingerprint"
	"panval/pkg/platform/circuit"
)

// Type aliases for shared interfaces.
type (
	Source = ports.Source
	Sink   = ports.Sink
	Cache  = ports.Cache
)

const tracerName = "panval/screening"

// Service runs the screening pipeline: load, clean, classify, summarize, save.
// Every step after load is a pure computation, so a failed run can simply be
// re-run once the store problem is fixed.
type Service struct {
	source     Source
	sink       Sink
	cache      Cache
	classifier *screening.Classifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	clock      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCache memoizes classifications across runs. Cache failures never fail
// a run; the affected identifiers are classified again and the cache is left
// alone until the next run.
func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithClassifier(c *screening.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock sets the time source for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(source Source, sink Sink, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}

	svc := &Service{
		source:     source,
		sink:       sink,
		classifier: screening.NewClassifier(),
		logger:     logger.Discard(),
		tracer:     otel.Tracer(tracerName),
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Run executes one pass over the source. Load and save failures are returned
// wrapped; an inconsistent summary fails the run before anything is saved.
func (s *Service) Run(ctx context.Context) (report *screening.Report, err error) {
	startedAt := s.clock()
	runID := uuid.New()

	ctx, span := s.tracer.Start(ctx, "screening.Run",
		trace.WithAttributes(attribute.String("run_id", runID.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.RecordRun(err, s.clock())
	}()

	logger := s.logger.With("run_id", runID.String())

	var raw []*string
	err = s.stage(ctx, "load", func(ctx context.Context) error {
		var loadErr error
		raw, loadErr = s.source.Load(ctx)
		if loadErr != nil {
			return fmt.Errorf("load raw records: %w", loadErr)
		}
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "input source failed", "error", err)
		return nil, err
	}
	s.metrics.AddLoaded(len(raw))

	var (
		cleaned []string
		stats   screening.CleanStats
	)
	_ = s.stage(ctx, "clean", func(context.Context) error {
		cleaned, stats = screening.CleanWithStats(raw)
		return nil
	})
	s.metrics.AddDropped("null", stats.Null)
	s.metrics.AddDropped("blank", stats.Blank)
	s.metrics.AddDropped("duplicate", stats.Duplicates)
	logger.DebugContext(ctx, "cleaned raw records",
		"raw", len(raw),
		"cleaned", len(cleaned),
		"null", stats.Null,
		"blank", stats.Blank,
		"duplicates", stats.Duplicates,
	)

	var (
		results screening.Results
		hits    int
	)
	err = s.stage(ctx, "classify", func(ctx context.Context) error {
		var classifyErr error
		results, hits, classifyErr = s.classify(ctx, logger, cleaned)
		return classifyErr
	})
	if err != nil {
		return nil, fmt.Errorf("classify identifiers: %w", err)
	}

	summary, err := screening.Summarize(len(raw), results)
	if err != nil {
		logger.ErrorContext(ctx, "summary failed consistency check",
			"raw", len(raw),
			"results", len(results),
			"error", err,
		)
		return nil, err
	}
	s.metrics.AddOutcome(string(screening.StatusValid), summary.TotalValid)
	s.metrics.AddOutcome(string(screening.StatusInvalid), summary.TotalInvalid)

	err = s.stage(ctx, "save", func(ctx context.Context) error {
		if saveErr := s.sink.SaveResults(ctx, runID, results); saveErr != nil {
			return fmt.Errorf("save results: %w", saveErr)
		}
		if saveErr := s.sink.SaveSummary(ctx, runID, summary); saveErr != nil {
			return fmt.Errorf("save summary: %w", saveErr)
		}
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "output sink failed", "error", err)
		return nil, err
	}

	duration := s.clock().Sub(startedAt)
	logger.InfoContext(ctx, "screening run complete",
		"total_processed", summary.TotalProcessed,
		"total_valid", summary.TotalValid,
		"total_invalid", summary.TotalInvalid,
		"missing_or_incomplete", summary.MissingOrIncomplete,
		"cache_hits", hits,
		"duration", duration,
	)

	return &screening.Report{
		RunID:      runID,
		Results:    results,
		Summary:    summary,
		CleanStats: stats,
		CacheHits:  hits,
		StartedAt:  startedAt,
		Duration:   duration,
	}, nil
}

// classify resolves what it can from the cache and computes the rest. The
// returned results follow the order of cleaned.
func (s *Service) classify(ctx context.Context, logger *slog.Logger, cleaned []string) (screening.Results, int, error) {
	if s.cache == nil {
		results, err := s.classifier.Classify(ctx, cleaned)
		return results, 0, err
	}

	// One failure is enough to stop talking to the cache for this run.
	breaker := circuit.New("classification-cache", circuit.WithFailureThreshold(1))

	known, err := s.cache.Lookup(ctx, cleaned)
	if err != nil {
		logger.WarnContext(ctx, "classification cache lookup failed", "error", err)
		known = nil
		if _, change := breaker.RecordFailure(); change.Opened {
			logger.WarnContext(ctx, "classification cache disabled for this run", "breaker", breaker.Name())
		}
	}

	misses := make([]string, 0, len(cleaned))
	for _, id := range cleaned {
		if cached, ok := known[id]; !ok || !cached.Status.IsValid() {
			misses = append(misses, id)
		}
	}
	hits := len(cleaned) - len(misses)
	s.metrics.AddCacheLookups(hits, len(misses))

	computed, err := s.classifier.Classify(ctx, misses)
	if err != nil {
		return nil, 0, err
	}
	if len(computed) > 0 && !breaker.IsOpen() {
		if err := s.cache.Store(ctx, computed); err != nil {
			logger.WarnContext(ctx, "classification cache store failed", "error", err)
		}
	}

	fresh := make(map[string]screening.Result, len(computed))
	for _, r := range computed {
		fresh[r.Identifier] = r
	}
	out := make(screening.Results, len(cleaned))
	for i, id := range cleaned {
		if r, ok := fresh[id]; ok {
			out[i] = r
			continue
		}
		r := known[id]
		r.Identifier = id
		out[i] = r
		logger.DebugContext(ctx, "classification served from cache",
			"identifier", fingerprint.Short(id), "status", r.Status)
	}
	return out, hits, nil
}

// stage runs fn inside its own span and records its latency.
func (s *Service) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "screening."+name)
	defer span.End()

	start := s.clock()
	err := fn(ctx)
	s.metrics.ObserveStage(name, s.clock().Sub(start))
	if err != nil && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

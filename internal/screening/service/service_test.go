package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"panval/internal/screening"
	"panval/internal/screening/metrics"
	"panval/internal/screening/ports/mocks"
	"panval/internal/screening/service"
	"panval/internal/screening/store/memory"
	"panval/pkg/platform/sentinel"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	sink    *memory.Sink
	metrics *metrics.Metrics
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.sink = memory.NewSink()
	s.metrics = metrics.New(prometheus.NewRegistry())
}

func (s *ServiceSuite) newService(raw []*string, opts ...service.Option) *service.Service {
	opts = append([]service.Option{service.WithMetrics(s.metrics)}, opts...)
	svc, err := service.New(memory.NewSource(raw), s.sink, opts...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) TestRun() {
	s.Run("cleans classifies and saves", func() {
		raw := []*string{
			screening.Raw("abcde1234f"),
			screening.Raw(" ABCDE1234F "),
			nil,
			screening.Raw(""),
			screening.Raw("kxrpt2045m"),
		}
		report, err := s.newService(raw).Run(s.ctx)
		s.Require().NoError(err)

		s.NotEqual(uuid.Nil, report.RunID)
		s.Equal(screening.Summary{
			TotalProcessed:      5,
			TotalValid:          1,
			TotalInvalid:        1,
			MissingOrIncomplete: 3,
		}, report.Summary)
		s.Equal(screening.CleanStats{Null: 1, Blank: 1, Duplicates: 1}, report.CleanStats)
		s.Equal(map[string]screening.Status{
			"ABCDE1234F": screening.StatusInvalid,
			"KXRPT2045M": screening.StatusValid,
		}, report.Results.ByIdentifier())

		saved, err := s.sink.Results(s.ctx, report.RunID)
		s.Require().NoError(err)
		s.Equal(report.Results, saved)

		summary, err := s.sink.Summary(s.ctx, report.RunID)
		s.Require().NoError(err)
		s.Equal(report.Summary, summary)
	})

	s.Run("empty dataset produces an empty run", func() {
		report, err := s.newService(nil).Run(s.ctx)
		s.Require().NoError(err)
		s.Empty(report.Results)
		s.Equal(screening.Summary{}, report.Summary)
	})

	s.Run("each run gets its own id", func() {
		svc := s.newService(screening.RawRecords("KXRPT2045M"))
		first, err := svc.Run(s.ctx)
		s.Require().NoError(err)
		second, err := svc.Run(s.ctx)
		s.Require().NoError(err)
		s.NotEqual(first.RunID, second.RunID)
	})
}

func (s *ServiceSuite) TestMetrics() {
	raw := []*string{screening.Raw("kxrpt2045m"), screening.Raw("AB1234"), screening.Raw("KXRPT2045M"), nil}
	_, err := s.newService(raw).Run(s.ctx)
	s.Require().NoError(err)

	s.Equal(4.0, promtest.ToFloat64(s.metrics.RecordsLoaded))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Outcomes.WithLabelValues("valid")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Outcomes.WithLabelValues("invalid")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Dropped.WithLabelValues("null")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Dropped.WithLabelValues("duplicate")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Runs.WithLabelValues("success")))
}

func (s *ServiceSuite) TestCache() {
	s.Run("cached classifications are reused", func() {
		cache := memory.NewCache()
		s.Require().NoError(cache.Store(s.ctx, screening.Classify([]string{"KXRPT2045M"})))

		report, err := s.newService(screening.RawRecords("KXRPT2045M", "AB1234"), service.WithCache(cache)).Run(s.ctx)
		s.Require().NoError(err)

		s.Equal(1, report.CacheHits)
		s.Equal(2, cache.Len())
		s.Equal([]string{"KXRPT2045M", "AB1234"}, identifiers(report.Results))
		s.Equal(1.0, promtest.ToFloat64(s.metrics.CacheLookups.WithLabelValues("hit")))
		s.Equal(1.0, promtest.ToFloat64(s.metrics.CacheLookups.WithLabelValues("miss")))
	})

	s.Run("second run is served entirely from cache", func() {
		cache := memory.NewCache()
		svc := s.newService(screening.RawRecords("KXRPT2045M", "AB1234"), service.WithCache(cache))

		first, err := svc.Run(s.ctx)
		s.Require().NoError(err)
		s.Zero(first.CacheHits)

		second, err := svc.Run(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, second.CacheHits)
		s.Equal(first.Results, second.Results)
	})
}

func identifiers(results screening.Results) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Identifier
	}
	return out
}

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, err := service.New(nil, mocks.NewMockSink(ctrl))
	assert.EqualError(t, err, "source is required")

	_, err = service.New(mocks.NewMockSource(ctrl), nil)
	assert.EqualError(t, err, "sink is required")
}

func TestRun_SourceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	sink := mocks.NewMockSink(ctrl)

	loadErr := errors.New("connection refused")
	source.EXPECT().Load(gomock.Any()).Return(nil, loadErr)

	svc, err := service.New(source, sink)
	require.NoError(t, err)

	report, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, loadErr)
	assert.Contains(t, err.Error(), "load raw records")
}

func TestRun_SinkFailure(t *testing.T) {
	raw := screening.RawRecords("KXRPT2045M")

	t.Run("results not saved stops before summary", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sink := mocks.NewMockSink(ctrl)
		sink.EXPECT().SaveResults(gomock.Any(), gomock.Any(), gomock.Any()).Return(sentinel.ErrUnavailable)

		svc, err := service.New(memory.NewSource(raw), sink)
		require.NoError(t, err)

		_, err = svc.Run(context.Background())
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.Contains(t, err.Error(), "save results")
	})

	t.Run("summary not saved", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sink := mocks.NewMockSink(ctrl)
		var runID uuid.UUID
		gomock.InOrder(
			sink.EXPECT().SaveResults(gomock.Any(), gomock.Any(), gomock.Len(1)).
				DoAndReturn(func(_ context.Context, id uuid.UUID, _ screening.Results) error {
					runID = id
					return nil
				}),
			sink.EXPECT().SaveSummary(gomock.Any(), gomock.Any(), screening.Summary{TotalProcessed: 1, TotalValid: 1}).
				DoAndReturn(func(_ context.Context, id uuid.UUID, _ screening.Summary) error {
					assert.Equal(t, runID, id)
					return sentinel.ErrConflict
				}),
		)

		svc, err := service.New(memory.NewSource(raw), sink)
		require.NoError(t, err)

		_, err = svc.Run(context.Background())
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		assert.Contains(t, err.Error(), "save summary")
	})
}

func TestRun_CacheFailuresAreNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCache(ctrl)
	cache.EXPECT().Lookup(gomock.Any(), []string{"KXRPT2045M", "AB1234"}).Return(nil, errors.New("redis down"))
	// Store is never reached once the lookup failed.

	sink := memory.NewSink()
	svc, err := service.New(memory.NewSource(screening.RawRecords("KXRPT2045M", "AB1234")), sink, service.WithCache(cache))
	require.NoError(t, err)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.CacheHits)
	assert.Equal(t, 1, report.Summary.TotalValid)
	assert.Equal(t, 1, report.Summary.TotalInvalid)
}

func TestRun_CacheStoreFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCache(ctrl)
	cache.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(map[string]screening.Result{}, nil)
	cache.EXPECT().Store(gomock.Any(), gomock.Len(1)).Return(errors.New("OOM command not allowed"))

	svc, err := service.New(memory.NewSource(screening.RawRecords("KXRPT2045M")), memory.NewSink(), service.WithCache(cache))
	require.NoError(t, err)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.TotalValid)
}

func TestRun_CorruptCacheEntryIsRecomputed(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCache(ctrl)
	cache.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(map[string]screening.Result{
		"KXRPT2045M": {Identifier: "KXRPT2045M", Status: "unknown"},
	}, nil)
	cache.EXPECT().Store(gomock.Any(), gomock.Len(1)).Return(nil)

	svc, err := service.New(memory.NewSource(screening.RawRecords("KXRPT2045M")), memory.NewSink(), service.WithCache(cache))
	require.NoError(t, err)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.CacheHits)
	assert.Equal(t, screening.StatusValid, report.Results[0].Status)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)

	svc, err := service.New(memory.NewSource(screening.RawRecords("KXRPT2045M")), sink)
	require.NoError(t, err)

	_, err = svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"panval/internal/screening"
	"panval/internal/screening/service"
	"panval/internal/screening/store/postgres"
	"panval/pkg/platform/sentinel"
	"panval/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB, postgres.WithBatchSize(2))
	s.Require().NoError(s.store.EnsureSchema(s.ctx))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(s.ctx, postgres.DefaultInputTable, "pan_classifications", "pan_run_summaries")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestSeedAndLoad() {
	seeder, err := postgres.NewSeeder(s.ctx, s.postgres.DSN, "", "")
	s.Require().NoError(err)
	defer func() { _ = seeder.Close(s.ctx) }()

	raw := []*string{screening.Raw("abcde1234f"), nil, screening.Raw(""), screening.Raw(" ABCDE1234F ")}
	n, err := seeder.Seed(s.ctx, raw, false)
	s.Require().NoError(err)
	s.EqualValues(4, n)

	got, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 4)

	nulls := 0
	for _, r := range got {
		if r == nil {
			nulls++
		}
	}
	s.Equal(1, nulls)

	s.Run("replace truncates first", func() {
		n, err := seeder.Seed(s.ctx, screening.RawRecords("KXRPT2045M"), true)
		s.Require().NoError(err)
		s.EqualValues(1, n)

		got, err := s.store.Load(s.ctx)
		s.Require().NoError(err)
		s.Len(got, 1)
	})
}

func (s *PostgresStoreSuite) TestResultsInBatches() {
	runID := uuid.New()
	results := screening.Classify([]string{"AABCD1234Z", "AB1234", "KXRPT2045M"})

	s.Require().NoError(s.store.SaveResults(s.ctx, runID, results))

	got, err := s.store.Results(s.ctx, runID)
	s.Require().NoError(err)
	s.Equal(results, got)

	s.ErrorIs(s.store.SaveResults(s.ctx, runID, results), sentinel.ErrConflict)

	_, err = s.store.Results(s.ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSummary() {
	runID := uuid.New()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := postgres.New(s.postgres.DB, postgres.WithClock(func() time.Time { return fixed }))
	summary := screening.Summary{TotalProcessed: 4, TotalInvalid: 1, MissingOrIncomplete: 3}

	s.Require().NoError(store.SaveSummary(s.ctx, runID, summary))

	got, err := store.Summary(s.ctx, runID)
	s.Require().NoError(err)
	s.Equal(summary, got)

	s.ErrorIs(store.SaveSummary(s.ctx, runID, summary), sentinel.ErrConflict)

	_, err = store.Summary(s.ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPipelineEndToEnd() {
	seeder, err := postgres.NewSeeder(s.ctx, s.postgres.DSN, "", "")
	s.Require().NoError(err)
	defer func() { _ = seeder.Close(s.ctx) }()

	_, err = seeder.Seed(s.ctx, []*string{
		screening.Raw("abcde1234f"), screening.Raw(" ABCDE1234F "), nil, screening.Raw(""), screening.Raw("kxrpt2045m"),
	}, true)
	s.Require().NoError(err)

	svc, err := service.New(s.store, s.store)
	s.Require().NoError(err)

	report, err := svc.Run(s.ctx)
	s.Require().NoError(err)

	summary, err := s.store.Summary(s.ctx, report.RunID)
	s.Require().NoError(err)
	s.Equal(screening.Summary{TotalProcessed: 5, TotalValid: 1, TotalInvalid: 1, MissingOrIncomplete: 3}, summary)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"panval/internal/screening"
	"panval/pkg/platform/sentinel"
	txcontext "panval/pkg/platform/tx"
)

const (
	DefaultInputTable  = "pan_numbers_dataset"
	DefaultInputColumn = "pan_number"

	// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
	uniqueViolation = "23505"

	defaultBatchSize = 5000
)

// Store reads the raw dataset from an input table and writes classifications
// and run summaries to its own tables. It implements both ports.Source and
// ports.Sink.
type Store struct {
	db          *sql.DB
	inputTable  string
	inputColumn string
	batchSize   int
	clock       func() time.Time
}

type Option func(*Store)

// WithInputTable points Load at another table/column. The table may be
// schema-qualified ("staging.pan_raw").
func WithInputTable(table, column string) Option {
	return func(s *Store) {
		if table != "" {
			s.inputTable = table
		}
		if column != "" {
			s.inputColumn = column
		}
	}
}

// WithBatchSize sets how many results go into one INSERT round trip.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClock sets the clock used for summary timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:          db,
		inputTable:  DefaultInputTable,
		inputColumn: DefaultInputColumn,
		batchSize:   defaultBatchSize,
		clock:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w: %w", sentinel.ErrUnavailable, err)
	}
	return db, nil
}

// EnsureSchema creates the input and output tables when they are missing.
// It never alters existing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s TEXT NULL)`,
			quoteQualified(s.inputTable), pq.QuoteIdentifier(s.inputColumn)),
		`CREATE TABLE IF NOT EXISTS pan_classifications (
			run_id      UUID NOT NULL,
			pan_number  TEXT NOT NULL,
			status      TEXT NOT NULL,
			violations  TEXT[] NOT NULL DEFAULT '{}',
			PRIMARY KEY (run_id, pan_number)
		)`,
		`CREATE TABLE IF NOT EXISTS pan_run_summaries (
			run_id                UUID PRIMARY KEY,
			total_processed       INTEGER NOT NULL,
			total_valid           INTEGER NOT NULL,
			total_invalid         INTEGER NOT NULL,
			missing_or_incomplete INTEGER NOT NULL CHECK (missing_or_incomplete >= 0),
			created_at            TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Load returns every row of the input column; NULL rows come back as nil.
func (s *Store) Load(ctx context.Context) ([]*string, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s`,
		pq.QuoteIdentifier(s.inputColumn), quoteQualified(s.inputTable))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query raw records: %w", err)
	}
	defer rows.Close()

	var out []*string
	for rows.Next() {
		var value sql.NullString
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan raw record: %w", err)
		}
		if !value.Valid {
			out = append(out, nil)
			continue
		}
		v := value.String
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw records: %w", err)
	}
	return out, nil
}

// SaveResults writes all results of a run in one transaction, batching rows
// through unnest so a batch costs one round trip.
func (s *Store) SaveResults(ctx context.Context, runID uuid.UUID, results screening.Results) error {
	query := `
		INSERT INTO pan_classifications (run_id, pan_number, status, violations)
		SELECT $1, u.pan_number, u.status,
			COALESCE(string_to_array(NULLIF(u.violations, ''), ','), '{}')
		FROM unnest($2::text[], $3::text[], $4::text[]) AS u(pan_number, status, violations)
	`
	return txcontext.RunInTx(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.ExecutorFrom(ctx, s.db)
		for start := 0; start < len(results); start += s.batchSize {
			batch := results[start:min(start+s.batchSize, len(results))]
			ids := make([]string, len(batch))
			statuses := make([]string, len(batch))
			violations := make([]string, len(batch))
			for i, r := range batch {
				ids[i] = r.Identifier
				statuses[i] = string(r.Status)
				violations[i] = joinViolations(r.Violations)
			}
			_, err := exec.ExecContext(ctx, query, runID, pq.Array(ids), pq.Array(statuses), pq.Array(violations))
			if err != nil {
				return translateError("insert classifications", err)
			}
		}
		return nil
	})
}

func (s *Store) SaveSummary(ctx context.Context, runID uuid.UUID, summary screening.Summary) error {
	query := `
		INSERT INTO pan_run_summaries (
			run_id, total_processed, total_valid, total_invalid,
			missing_or_incomplete, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		runID,
		summary.TotalProcessed,
		summary.TotalValid,
		summary.TotalInvalid,
		summary.MissingOrIncomplete,
		s.clock(),
	)
	if err != nil {
		return translateError("insert run summary", err)
	}
	return nil
}

// Results returns the classifications of a run ordered by identifier.
func (s *Store) Results(ctx context.Context, runID uuid.UUID) (screening.Results, error) {
	query := `
		SELECT pan_number, status, violations
		FROM pan_classifications
		WHERE run_id = $1
		ORDER BY pan_number
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query classifications: %w", err)
	}
	defer rows.Close()

	var out screening.Results
	for rows.Next() {
		var (
			r          screening.Result
			status     string
			violations []string
		)
		if err := rows.Scan(&r.Identifier, &status, pq.Array(&violations)); err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		r.Status = screening.Status(status)
		r.Violations = toViolations(violations)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classifications: %w", err)
	}
	if len(out) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return out, nil
}

func (s *Store) Summary(ctx context.Context, runID uuid.UUID) (screening.Summary, error) {
	var summary screening.Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT total_processed, total_valid, total_invalid, missing_or_incomplete
		FROM pan_run_summaries
		WHERE run_id = $1
	`, runID).Scan(
		&summary.TotalProcessed,
		&summary.TotalValid,
		&summary.TotalInvalid,
		&summary.MissingOrIncomplete,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return screening.Summary{}, sentinel.ErrNotFound
		}
		return screening.Summary{}, fmt.Errorf("query run summary: %w", err)
	}
	return summary, nil
}

func translateError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

func joinViolations(vs []screening.Violation) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

func toViolations(values []string) []screening.Violation {
	if len(values) == 0 {
		return nil
	}
	out := make([]screening.Violation, len(values))
	for i, v := range values {
		out[i] = screening.Violation(v)
	}
	return out
}

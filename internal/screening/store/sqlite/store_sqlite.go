// Package sqlite is a single-file store for running the pipeline without a
// database server. Table layout mirrors the postgres store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"panval/internal/screening"
	"panval/pkg/platform/sentinel"
	txcontext "panval/pkg/platform/tx"
)

const (
	DefaultInputTable  = "pan_numbers_dataset"
	DefaultInputColumn = "pan_number"
)

// Store implements ports.Source and ports.Sink on a SQLite database.
type Store struct {
	db          *sql.DB
	inputTable  string
	inputColumn string
	clock       func() time.Time
}

type Option func(*Store)

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
		clock:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Open opens (creating if needed) the database file at path.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY inside the results transaction.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w: %w", sentinel.ErrUnavailable, err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s TEXT NULL)`,
			quoteIdent(s.inputTable), quoteIdent(s.inputColumn)),
		`CREATE TABLE IF NOT EXISTS pan_classifications (
			run_id      TEXT NOT NULL,
			pan_number  TEXT NOT NULL,
			status      TEXT NOT NULL,
			violations  TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, pan_number)
		)`,
		`CREATE TABLE IF NOT EXISTS pan_run_summaries (
			run_id                TEXT PRIMARY KEY,
			total_processed       INTEGER NOT NULL,
			total_valid           INTEGER NOT NULL,
			total_invalid         INTEGER NOT NULL,
			missing_or_incomplete INTEGER NOT NULL CHECK (missing_or_incomplete >= 0),
			created_at            TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Insert appends raw records to the input table. Used to seed local runs.
func (s *Store) Insert(ctx context.Context, records []*string) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?)`,
		quoteIdent(s.inputTable), quoteIdent(s.inputColumn))
	return txcontext.RunInTx(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.ExecutorFrom(ctx, s.db)
		for _, r := range records {
			var value sql.NullString
			if r != nil {
				value = sql.NullString{String: *r, Valid: true}
			}
			if _, err := exec.ExecContext(ctx, query, value); err != nil {
				return fmt.Errorf("insert raw record: %w", err)
			}
		}
		return nil
	})
}

// Truncate removes every raw record from the input table.
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, quoteIdent(s.inputTable))); err != nil {
		return fmt.Errorf("truncate input table: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) ([]*string, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s`, quoteIdent(s.inputColumn), quoteIdent(s.inputTable))
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

func (s *Store) SaveResults(ctx context.Context, runID uuid.UUID, results screening.Results) error {
	query := `
		INSERT INTO pan_classifications (run_id, pan_number, status, violations)
		VALUES (?, ?, ?, ?)
	`
	return txcontext.RunInTx(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.ExecutorFrom(ctx, s.db)
		for _, r := range results {
			_, err := exec.ExecContext(ctx, query,
				runID.String(), r.Identifier, string(r.Status), joinViolations(r.Violations))
			if err != nil {
				return translateError("insert classification", err)
			}
		}
		return nil
	})
}

func (s *Store) SaveSummary(ctx context.Context, runID uuid.UUID, summary screening.Summary) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO pan_run_summaries (
			run_id, total_processed, total_valid, total_invalid,
			missing_or_incomplete, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		runID.String(),
		summary.TotalProcessed,
		summary.TotalValid,
		summary.TotalInvalid,
		summary.MissingOrIncomplete,
		s.clock().UTC(),
	)
	if err != nil {
		return translateError("insert run summary", err)
	}
	return nil
}

func (s *Store) Results(ctx context.Context, runID uuid.UUID) (screening.Results, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pan_number, status, violations
		FROM pan_classifications
		WHERE run_id = ?
		ORDER BY pan_number
	`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("query classifications: %w", err)
	}
	defer rows.Close()

	var out screening.Results
	for rows.Next() {
		var (
			r          screening.Result
			status     string
			violations string
		)
		if err := rows.Scan(&r.Identifier, &status, &violations); err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		r.Status = screening.Status(status)
		r.Violations = splitViolations(violations)
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
		WHERE run_id = ?
	`, runID.String()).Scan(
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
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func joinViolations(vs []screening.Violation) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

func splitViolations(value string) []screening.Violation {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]screening.Violation, len(parts))
	for i, p := range parts {
		out[i] = screening.Violation(p)
	}
	return out
}

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Seeder bulk-loads raw records into the input table using the COPY
// protocol. It keeps its own pgx connection because database/sql has no
// COPY support.
type Seeder struct {
	conn   *pgx.Conn
	table  pgx.Identifier
	column string
}

// NewSeeder connects to dsn and targets table.column.
func NewSeeder(ctx context.Context, dsn, table, column string) (*Seeder, error) {
	if table == "" {
		table = DefaultInputTable
	}
	if column == "" {
		column = DefaultInputColumn
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect for seeding: %w", err)
	}
	return &Seeder{
		conn:   conn,
		table:  pgx.Identifier(strings.Split(table, ".")),
		column: column,
	}, nil
}

// Seed copies records into the input table and returns the number of rows
// written. With replace set, existing rows are truncated in the same
// transaction first. Nil records are stored as NULL.
func (s *Seeder) Seed(ctx context.Context, records []*string, replace bool) (int64, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if replace {
		if _, err := tx.Exec(ctx, "TRUNCATE "+s.table.Sanitize()); err != nil {
			return 0, fmt.Errorf("truncate input table: %w", err)
		}
	}

	n, err := tx.CopyFrom(ctx, s.table, []string{s.column},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			if records[i] == nil {
				return []any{nil}, nil
			}
			return []any{*records[i]}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy raw records: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit seed tx: %w", err)
	}
	return n, nil
}

func (s *Seeder) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

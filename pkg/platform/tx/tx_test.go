package tx

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE items (name TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n))
	return n
}

func insert(ctx context.Context, db *sql.DB, name string) error {
	_, err := ExecutorFrom(ctx, db).ExecContext(ctx, `INSERT INTO items (name) VALUES (?)`, name)
	return err
}

func TestFrom(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
	assert.Equal(t, context.Background(), WithTx(context.Background(), nil))
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		db := openDB(t)
		err := RunInTx(ctx, db, func(ctx context.Context) error {
			_, ok := From(ctx)
			assert.True(t, ok)
			return insert(ctx, db, "a")
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count(t, db))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db := openDB(t)
		boom := errors.New("boom")
		err := RunInTx(ctx, db, func(ctx context.Context) error {
			require.NoError(t, insert(ctx, db, "a"))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, count(t, db))
	})

	t.Run("nested call joins the outer transaction", func(t *testing.T) {
		db := openDB(t)
		boom := errors.New("boom")
		err := RunInTx(ctx, db, func(ctx context.Context) error {
			outer, _ := From(ctx)
			require.NoError(t, RunInTx(ctx, db, func(ctx context.Context) error {
				inner, _ := From(ctx)
				assert.Same(t, outer, inner)
				return insert(ctx, db, "inner")
			}))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, count(t, db))
	})
}

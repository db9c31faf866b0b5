package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw    string
		driver string
		path   string
	}{
		{"postgres://u:p@localhost/books?sslmode=disable", DriverPostgres, ""},
		{"postgresql://localhost/books", DriverPostgres, ""},
		{"sqlite://data/books.db", DriverSQLite, "data/books.db"},
		{"file:data/books.db?cache=shared", DriverSQLite, "data/books.db"},
		{"books.db", DriverSQLite, "books.db"},
	}
	for _, tt := range tests {
		cfg, err := ParseURL(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.driver, cfg.Driver, tt.raw)
		assert.Equal(t, tt.path, cfg.Path, tt.raw)
	}

	_, err := ParseURL("")
	assert.Error(t, err)
	_, err = ParseURL("mysql://localhost/books")
	assert.Error(t, err)
}

func TestMigrateSQLiteIsIdempotent(t *testing.T) {
	cfg, err := ParseURL(filepath.Join(t.TempDir(), "nested", "books.db"))
	require.NoError(t, err)

	db, err := Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db, cfg.Driver))
	require.NoError(t, Migrate(ctx, db, cfg.Driver))

	_, err = db.ExecContext(ctx, `INSERT INTO users (username, hash) VALUES ($1, $2)`, "alice", "x")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO users (username, hash) VALUES ($1, $2)`, "alice", "y")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	_, err = db.ExecContext(ctx, `INSERT INTO reviews (user_id, book_id, rating) VALUES ($1, $2, $3)`, 1, 999, 5)
	assert.Error(t, err, "foreign keys should be enforced")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}), "foreign key violation")
	assert.True(t, IsUniqueViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	assert.False(t, IsUniqueViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}))
	// message text alone is not enough
	assert.False(t, IsUniqueViolation(errors.New(`pq: duplicate key value violates unique constraint "users_username_key"`)))
}

func TestSQLiteDSNUsesImmediateTransactions(t *testing.T) {
	cfg, err := ParseURL("sqlite://data/books.db")
	require.NoError(t, err)
	assert.Contains(t, cfg.DSN, "_txlock=immediate")
	assert.Contains(t, cfg.DSN, "_busy_timeout=5000")
}

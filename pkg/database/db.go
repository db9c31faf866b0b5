package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver string
	DSN    string
	// Path is the sqlite file; empty for postgres.
	Path string
}

// ParseURL maps DATABASE_URL onto a driver and DSN.
//
//	postgres://... or postgresql://...  -> lib/pq
//	sqlite://path, file:path, or a bare path -> go-sqlite3
func ParseURL(raw string) (Config, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Config{}, fmt.Errorf("database url is empty")
	}

	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return Config{Driver: DriverPostgres, DSN: raw}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return sqliteConfig(strings.TrimPrefix(raw, "sqlite://")), nil
	case strings.HasPrefix(raw, "file:"):
		return sqliteConfig(strings.TrimPrefix(raw, "file:")), nil
	case strings.Contains(raw, "://"):
		return Config{}, fmt.Errorf("unsupported database url scheme: %s", raw)
	default:
		return sqliteConfig(raw), nil
	}
}

func sqliteConfig(path string) Config {
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	// BEGIN IMMEDIATE takes the write lock up front, so a read-then-write
	// transaction waits on the busy timeout instead of failing on a stale
	// snapshot.
	q.Set("_txlock", "immediate")
	return Config{
		Driver: DriverSQLite,
		DSN:    "file:" + path + "?" + q.Encode(),
		Path:   path,
	}
}

func EnsureDataDir(cfg Config) error {
	if cfg.Path == "" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
}

func Open(cfg Config) (*sql.DB, error) {
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	return db, nil
}

func MustOpen(cfg Config) *sql.DB {
	db, err := Open(cfg)
	if err != nil {
		logrus.WithError(err).WithField("driver", cfg.Driver).Fatal("failed to open db")
	}
	return db
}

// pgUniqueViolation is SQLSTATE unique_violation.
const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err came from a UNIQUE constraint in
// either supported driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

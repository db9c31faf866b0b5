// Package testutil builds throwaway databases and relational fixtures for
// package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/qawatake/fixify"
	"golang.org/x/crypto/bcrypt"

	"bookreview/pkg/database"
	"bookreview/pkg/models"
)

// Password is the plaintext behind every User fixture's hash.
const Password = "correct horse"

// NewDB opens a migrated sqlite database in the test's temp dir.
func NewDB(tb testing.TB) *sql.DB {
	tb.Helper()

	cfg, err := database.ParseURL(filepath.Join(tb.TempDir(), "test.db"))
	if err != nil {
		tb.Fatalf("parse db url: %v", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		tb.Fatalf("open db: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(context.Background(), db, cfg.Driver); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

func User(username string) *fixify.Model[models.User] {
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return fixify.NewModel(&models.User{Username: username, PasswordHash: string(hash)})
}

func Book(isbn, title, author string, year int) *fixify.Model[models.Book] {
	return fixify.NewModel(&models.Book{ISBN: isbn, Title: title, Author: author, Year: year})
}

// Review must be attached to both a User and a Book; use Bind to share it.
func Review(rating int, comment string) *fixify.Model[models.Review] {
	return fixify.NewModel(&models.Review{Rating: rating, Comment: comment},
		fixify.ConnectorFunc(func(_ testing.TB, r *models.Review, u *models.User) {
			r.UserID = u.ID
		}),
		fixify.ConnectorFunc(func(_ testing.TB, r *models.Review, b *models.Book) {
			r.BookID = b.ID
		}),
	)
}

// Insert writes the fixture graph parents-first and fills in generated ids.
func Insert(tb testing.TB, db *sql.DB, ms ...fixify.IModel) {
	tb.Helper()
	ctx := context.Background()

	fixify.New(tb, ms...).Apply(func(v any) error {
		switch m := v.(type) {
		case *models.User:
			if m.CreatedAt.IsZero() {
				m.CreatedAt = time.Now().UTC()
			}
			return db.QueryRowContext(ctx,
				`INSERT INTO users (username, hash, created_at) VALUES ($1, $2, $3) RETURNING id`,
				m.Username, m.PasswordHash, m.CreatedAt,
			).Scan(&m.ID)
		case *models.Book:
			return db.QueryRowContext(ctx,
				`INSERT INTO books (isbn, title, author, year) VALUES ($1, $2, $3, $4) RETURNING id`,
				m.ISBN, m.Title, m.Author, m.Year,
			).Scan(&m.ID)
		case *models.Review:
			if m.Date.IsZero() {
				m.Date = time.Now().UTC()
			}
			return db.QueryRowContext(ctx,
				`INSERT INTO reviews (user_id, book_id, rating, comment, date) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
				m.UserID, m.BookID, m.Rating, m.Comment, m.Date,
			).Scan(&m.ID)
		}
		return nil
	})
}

// CountRows returns the row count of table; table must be a trusted name.
func CountRows(tb testing.TB, db *sql.DB, table string) int {
	tb.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}

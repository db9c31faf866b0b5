package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bookreview/pkg/models"
)

// SearchLimit caps a results page.
const SearchLimit = 15

type Repo struct {
	DB *sql.DB
}

type SearchQuery struct {
	Q     string // substring of isbn, title or author
	Limit int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// GetByISBN returns (nil, nil) when no book has that isbn.
func (r *Repo) GetByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, isbn, title, author, year
		FROM books
		WHERE isbn = $1
	`, isbn)

	var b models.Book
	if err := row.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByISBN: %w", err)
	}
	return &b, nil
}

func (r *Repo) Search(ctx context.Context, q SearchQuery) ([]models.Book, error) {
	sqlStr, args := buildSearchSQL(q)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Book, 0)
	for rows.Next() {
		var b models.Book
		if err := rows.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Year); err != nil {
			return nil, fmt.Errorf("search scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Upsert inserts b or refreshes title, author and year of the book with the
// same isbn. b.ID is filled in either way.
func (r *Repo) Upsert(ctx context.Context, b *models.Book) error {
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO books (isbn, title, author, year)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (isbn) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			year = excluded.year
		RETURNING id
	`, b.ISBN, b.Title, b.Author, b.Year).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("upsert book %s: %w", b.ISBN, err)
	}
	return nil
}

// Each calls fn for every book in isbn order.
func (r *Repo) Each(ctx context.Context, fn func(models.Book) error) error {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, isbn, title, author, year
		FROM books
		ORDER BY isbn ASC
	`)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b models.Book
		if err := rows.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Year); err != nil {
			return fmt.Errorf("scan book: %w", err)
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return rows.Err()
}

// buildSearchSQL matches the keyword case-insensitively anywhere in isbn,
// title or author. LIKE wildcards typed by the user match literally.
func buildSearchSQL(q SearchQuery) (string, []any) {
	limit := q.Limit
	if limit <= 0 || limit > SearchLimit {
		limit = SearchLimit
	}

	kw := "%" + escapeLike(strings.ToLower(strings.TrimSpace(q.Q))) + "%"
	sqlStr := `
		SELECT id, isbn, title, author, year
		FROM books
		WHERE LOWER(isbn) LIKE $1 ESCAPE '\'
		   OR LOWER(title) LIKE $1 ESCAPE '\'
		   OR LOWER(author) LIKE $1 ESCAPE '\'
		ORDER BY title ASC, isbn ASC
		LIMIT $2
	`
	return sqlStr, []any{kw, limit}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

package reviews

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookreview/pkg/apperr"
	"bookreview/pkg/database"
	"bookreview/pkg/models"
)

const (
	MsgAlreadyReviewed = "You already submitted a review for this book"

	// DateLayout renders review dates as "DD Mon YYYY HH:MI:SS".
	DateLayout = "02 Jan 2006 03:04:05"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Create inserts rv unless its author already reviewed the book. The check
// and insert share a transaction and the UNIQUE(user_id, book_id)
// constraint catches whatever slips between them.
func (r *Repo) Create(ctx context.Context, rv *models.Review) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := reviewExists(ctx, tx, rv.UserID, rv.BookID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Duplicate(MsgAlreadyReviewed)
	}

	rv.Date = time.Now().UTC()
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO reviews (user_id, book_id, rating, comment, date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, rv.UserID, rv.BookID, rv.Rating, rv.Comment, rv.Date).Scan(&rv.ID); err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Duplicate(MsgAlreadyReviewed)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Duplicate(MsgAlreadyReviewed)
		}
		return fmt.Errorf("commit review: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func reviewExists(ctx context.Context, q queryRower, userID, bookID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM reviews WHERE user_id = $1 AND book_id = $2)
	`, userID, bookID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existing review: %w", err)
	}
	return exists, nil
}

// ListByBook returns the book's reviews with reviewer names, oldest first.
func (r *Repo) ListByBook(ctx context.Context, bookID int64) ([]models.BookReview, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT u.username, r.rating, r.comment, r.date
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = $1
		ORDER BY r.date ASC, r.id ASC
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	out := make([]models.BookReview, 0)
	for rows.Next() {
		var (
			br      models.BookReview
			comment sql.NullString
		)
		if err := rows.Scan(&br.Username, &br.Rating, &comment, &br.Date); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		br.Comment = comment.String
		br.DateText = br.Date.Format(DateLayout)
		out = append(out, br)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// ExportRow is one review flattened for the CSV exporter.
type ExportRow struct {
	ISBN     string
	Username string
	Rating   int
	Comment  string
	Date     time.Time
}

// ListAll walks every review ordered by book then date.
func (r *Repo) ListAll(ctx context.Context, fn func(ExportRow) error) error {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT b.isbn, u.username, r.rating, r.comment, r.date
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		JOIN books b ON b.id = r.book_id
		ORDER BY b.isbn ASC, r.date ASC, r.id ASC
	`)
	if err != nil {
		return fmt.Errorf("list all reviews: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row ExportRow
		if err := rows.Scan(&row.ISBN, &row.Username, &row.Rating, &row.Comment, &row.Date); err != nil {
			return fmt.Errorf("scan review row: %w", err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

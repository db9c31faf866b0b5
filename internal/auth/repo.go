package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookreview/pkg/apperr"
	"bookreview/pkg/database"
	"bookreview/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// CreateUser inserts a user and fills in its id and created_at. A username
// taken concurrently surfaces as apperr.ErrDuplicate.
func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	u.CreatedAt = time.Now().UTC()
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (username, hash, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, u.Username, u.PasswordHash, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Duplicate(MsgUsernameTaken)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, username, hash, created_at
		FROM users
		WHERE username = $1
	`, username)

	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get by username: %w", err)
	}
	return u, nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// scanUser returns (nil, nil) when the row does not exist.
func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

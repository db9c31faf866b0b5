package session

import (
	"context"
	"errors"
	"time"
)

// ErrGone is returned by Update when the session was deleted or expired
// after the request loaded it.
var ErrGone = errors.New("session: no longer exists")

type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Session is the server-side record behind a session cookie.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	LoggedIn  bool      `json:"logged_in"`
	Flashes   []Flash   `json:"flashes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions by id. Get returns (nil, nil) for unknown or
// expired sessions. Update never recreates a deleted session.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}

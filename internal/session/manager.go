package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const ctxSessionKey = "session.context"

// Manager loads the session for each request and hands handlers an
// explicit *Context instead of shared global state.
type Manager struct {
	Store  Store
	Tokens TokenService
	TTL    time.Duration
	Cookie CookieOptions
	Logger logrus.FieldLogger
}

func NewManager(store Store, tokens TokenService, ttl time.Duration, cookie CookieOptions, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{Store: store, Tokens: tokens, TTL: ttl, Cookie: cookie, Logger: logger}
}

// Middleware attaches a *Context to every request. Nothing is written to
// the store until a handler calls Save with something worth keeping.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxSessionKey, m.load(c.Request, c.Writer))
		c.Next()
	}
}

func (m *Manager) load(r *http.Request, w http.ResponseWriter) *Context {
	sc := &Context{m: m, w: w}

	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return sc
	}

	sid, err := m.Tokens.Parse(cookie.Value)
	if err != nil {
		m.Logger.WithError(err).Debug("rejecting session cookie")
		return sc
	}

	s, err := m.Store.Get(r.Context(), sid)
	if err != nil {
		m.Logger.WithError(err).Warn("session lookup failed")
		return sc
	}
	if s == nil || s.Expired(time.Now()) {
		return sc
	}

	sc.s = *s
	sc.persisted = true
	return sc
}

// FromGin returns the request's session context, or nil when the
// middleware is not installed.
func FromGin(c *gin.Context) *Context {
	v, ok := c.Get(ctxSessionKey)
	if !ok {
		return nil
	}
	sc, _ := v.(*Context)
	return sc
}

// Context is the per-request view of one session.
type Context struct {
	m         *Manager
	w         http.ResponseWriter
	s         Session
	persisted bool
}

func (sc *Context) ID() string { return sc.s.ID }

func (sc *Context) LoggedIn() bool {
	return sc.s.LoggedIn && sc.s.UserID > 0
}

// UserID returns the authenticated user, if any.
func (sc *Context) UserID() (int64, bool) {
	if !sc.LoggedIn() {
		return 0, false
	}
	return sc.s.UserID, true
}

func (sc *Context) Username() string { return sc.s.Username }

func (sc *Context) AddFlash(category, message string) {
	sc.s.Flashes = append(sc.s.Flashes, Flash{Category: category, Message: message})
}

// PopFlashes returns pending notices and forgets them; call Save afterwards.
func (sc *Context) PopFlashes() []Flash {
	out := sc.s.Flashes
	sc.s.Flashes = nil
	if out == nil {
		return []Flash{}
	}
	return out
}

// ClearIdentity drops the logged-in user but keeps pending flashes.
func (sc *Context) ClearIdentity() {
	sc.s.UserID = 0
	sc.s.Username = ""
	sc.s.LoggedIn = false
}

// Authenticate discards the previous session and starts a fresh one for
// the user so a pre-login session id is never promoted.
func (sc *Context) Authenticate(ctx context.Context, userID int64, username string) error {
	if err := sc.Clear(ctx); err != nil {
		return err
	}
	sc.s.UserID = userID
	sc.s.Username = username
	sc.s.LoggedIn = true
	return nil
}

// Clear destroys all session state, stored record included.
func (sc *Context) Clear(ctx context.Context) error {
	if sc.persisted {
		if err := sc.m.Store.Delete(ctx, sc.s.ID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		ClearCookie(sc.w, sc.m.Cookie)
	}
	sc.s = Session{}
	sc.persisted = false
	return nil
}

// Save writes the session and, for a new one, issues the cookie. It must
// run before the response body is written. An anonymous session with no
// flashes is not stored.
func (sc *Context) Save(ctx context.Context) error {
	if sc.persisted {
		err := sc.m.Store.Update(ctx, sc.s)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrGone) {
			return fmt.Errorf("update session: %w", err)
		}
		// Logged out (or expired) while this request ran: drop the
		// identity and only keep notices queued by this request.
		ClearCookie(sc.w, sc.m.Cookie)
		sc.s = Session{Flashes: sc.s.Flashes}
		sc.persisted = false
	}

	if !sc.s.LoggedIn && len(sc.s.Flashes) == 0 {
		return nil
	}

	id, err := GenerateID()
	if err != nil {
		return err
	}
	now := time.Now()
	sc.s.ID = id
	sc.s.CreatedAt = now
	sc.s.ExpiresAt = now.Add(sc.m.TTL)

	if err := sc.m.Store.Create(ctx, sc.s); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	token, err := sc.m.Tokens.Sign(sc.s.ID, sc.s.ExpiresAt)
	if err != nil {
		return err
	}
	SetCookie(sc.w, token, sc.s.ExpiresAt, sc.m.Cookie)
	sc.persisted = true
	return nil
}

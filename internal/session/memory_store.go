package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Sessions do not survive a
// restart and are not shared between replicas; use RedisStore for that.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, s Session) error {
	if s.ID == "" {
		return fmt.Errorf("session: missing session id")
	}
	if s.Expired(m.now()) {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("session: id already in use")
	}
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if s.Expired(m.now()) {
		delete(m.sessions, sessionID)
		return nil, nil
	}
	out := clone(s)
	return &out, nil
}

func (m *MemoryStore) Update(_ context.Context, s Session) error {
	if s.ID == "" {
		return fmt.Errorf("session: missing session id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrGone
	}
	if s.Expired(m.now()) {
		delete(m.sessions, s.ID)
		return ErrGone
	}
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func clone(s Session) Session {
	if s.Flashes != nil {
		s.Flashes = append([]Flash(nil), s.Flashes...)
	}
	return s
}

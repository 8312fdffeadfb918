package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process. Expired sessions are replaced on
// access and swept at most once per TTL.
type MemoryStore struct {
	ttl   time.Duration
	now   func() time.Time
	locks KeyedMutex

	mu        sync.Mutex
	sessions  map[string]*Session
	lastSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (m *MemoryStore) expired(s *Session, now time.Time) bool {
	return m.ttl > 0 && now.Sub(s.LastActive) > m.ttl
}

func (m *MemoryStore) sweep(now time.Time) {
	if m.ttl <= 0 || now.Sub(m.lastSweep) < m.ttl {
		return
	}
	for k, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, k)
		}
	}
	m.lastSweep = now
}

func (m *MemoryStore) Acquire(_ context.Context, key string, initial State) (*Session, func(), error) {
	release := m.locks.Lock(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	s, ok := m.sessions[key]
	if !ok || m.expired(s, now) {
		s = &Session{Key: key, State: initial}
		m.sessions[key] = s
	}
	s.LastActive = now
	return s, release, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.LastActive = m.now()
	m.sessions[s.Key] = s
	return nil
}

// Len reports how many sessions are held, expired ones included until swept.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Sessions idle for longer
// than the TTL are dropped on access.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an in-memory store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep()
	s := New(m.now().UTC())
	m.sessions[s.ID] = s
	copied := *s
	return &copied, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	copied := *s
	return &copied, nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	updated := *s
	if err := fn(&updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = m.now().UTC()
	m.sessions[id] = &updated

	copied := updated
	return &copied, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.lookup(id); err != nil {
		return err
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of live sessions
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	return len(m.sessions)
}

// lookup must be called with mu held
func (m *MemoryStore) lookup(id string) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	if m.expired(s) {
		delete(m.sessions, id)
		return nil, notFound(id)
	}
	return s, nil
}

func (m *MemoryStore) expired(s *Session) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}

// sweep must be called with mu held
func (m *MemoryStore) sweep() {
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
		}
	}
}

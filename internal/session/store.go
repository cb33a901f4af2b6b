package session

import "sync"

// Store abstracts session storage so the core services are testable without
// shared global state. The in-memory implementation below is the production
// one; sessions are deliberately not persisted.
type Store interface {
	Put(s *Session)
	Get(id string) (*Session, bool)
	Delete(id string) bool
	Count() int
	ActiveCount() int
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *MemoryStore) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *MemoryStore) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ActiveCount returns the number of sessions that hold at least one message.
func (m *MemoryStore) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		s.mu.Lock()
		if len(s.Messages) > 0 {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

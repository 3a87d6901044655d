package store

import (
	"sync"

	"github.com/loopmill/loopmill/internal/models"
	"github.com/loopmill/loopmill/internal/session"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.Session),
	}
}

// Load returns a copy of the stored session, or models.ErrNotFound.
func (s *MemoryStore) Load(key session.Key) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key.String()]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := sess
	copied.RecentPrompts = append([]string(nil), sess.RecentPrompts...)
	return &copied, nil
}

// Save stores a copy of the session.
func (s *MemoryStore) Save(key session.Key, sess *models.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *sess
	copied.RecentPrompts = append([]string(nil), sess.RecentPrompts...)
	s.sessions[key.String()] = copied
	return nil
}

// Clear removes the session for a key.
func (s *MemoryStore) Clear(key session.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key.String())
	return nil
}

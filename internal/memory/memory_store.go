package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avvvet/bookbuddy/internal/models"
)

type memoryEntry struct {
	session   models.Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Entries older than the TTL
// are dropped when next touched. Everything is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration // zero disables expiry
	now      func() time.Time
}

// NewMemoryStore creates an in-process store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return s.ttl > 0 && !s.now().Before(e.expiresAt)
}

// LoadSession returns a copy of the stored session
func (s *MemoryStore) LoadSession(_ context.Context, conversationID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[conversationID]
	if !ok {
		return newSession(conversationID), nil
	}
	if s.expired(entry) {
		delete(s.sessions, conversationID)
		return newSession(conversationID), nil
	}

	session := entry.session
	return &session, nil
}

// SaveSession stores a copy of the session
func (s *MemoryStore) SaveSession(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ConversationID] = memoryEntry{
		session:   *session,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// ClearSession removes a session
func (s *MemoryStore) ClearSession(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, conversationID)
	return nil
}

// SessionExists reports whether a live session is stored
func (s *MemoryStore) SessionExists(_ context.Context, conversationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[conversationID]
	return ok && !s.expired(entry), nil
}

// Len returns the number of live sessions
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, entry := range s.sessions {
		if !s.expired(entry) {
			n++
		}
	}
	return n
}

package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avvvet/bookbuddy/internal/models"
)

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Manager owns conversation sessions: it creates, loads, saves, resets and
// expires them, and serializes turns of the same conversation.
type Manager struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewManager creates a new session manager
func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*keyLock),
	}
}

// Lock blocks until the caller holds the conversation exclusively and
// returns the matching unlock function.
func (m *Manager) Lock(conversationID string) func() {
	m.mu.Lock()
	l, ok := m.locks[conversationID]
	if !ok {
		l = &keyLock{}
		m.locks[conversationID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, conversationID)
		}
		m.mu.Unlock()
	}
}

// Get loads the session for a conversation, creating it with empty slots
// on first contact.
func (m *Manager) Get(ctx context.Context, conversationID string) (*models.Session, error) {
	session, err := m.store.LoadSession(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = m.now()
		m.logger.Debug("created session", zap.String("conversation_id", conversationID))
	}

	return session, nil
}

// Save persists the session
func (m *Manager) Save(ctx context.Context, session *models.Session) error {
	if err := m.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Reset wipes the slots back to empty and saves the session
func (m *Manager) Reset(ctx context.Context, session *models.Session) error {
	session.Slots = models.Slots{}

	if err := m.Save(ctx, session); err != nil {
		return err
	}

	m.logger.Info("session reset", zap.String("conversation_id", session.ConversationID))
	return nil
}

// Expire removes a session entirely
func (m *Manager) Expire(ctx context.Context, conversationID string) error {
	if err := m.store.ClearSession(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	m.logger.Info("session expired", zap.String("conversation_id", conversationID))
	return nil
}

// SessionExists checks if a session is stored
func (m *Manager) SessionExists(ctx context.Context, conversationID string) (bool, error) {
	return m.store.SessionExists(ctx, conversationID)
}

// GetActiveSessionCount returns the number of live sessions when the store
// can count them cheaply
func (m *Manager) GetActiveSessionCount() (int, bool) {
	if counter, ok := m.store.(interface{ Len() int }); ok {
		return counter.Len(), true
	}
	return 0, false
}

// Close closes the underlying store
func (m *Manager) Close() error {
	if closer, ok := m.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

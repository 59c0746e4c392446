package memory

import (
	"context"

	"github.com/avvvet/bookbuddy/internal/models"
)

// Store defines the interface for session storage
// This allows us to swap between in-memory and Redis
type Store interface {
	// LoadSession loads a session, or returns a fresh one with empty
	// slots and a zero CreatedAt when none is stored
	LoadSession(ctx context.Context, conversationID string) (*models.Session, error)

	// SaveSession writes the session and refreshes its TTL
	SaveSession(ctx context.Context, session *models.Session) error

	// ClearSession removes a session from storage
	ClearSession(ctx context.Context, conversationID string) error

	// SessionExists checks if a session exists
	SessionExists(ctx context.Context, conversationID string) (bool, error)
}

func newSession(conversationID string) *models.Session {
	return &models.Session{
		ConversationID: conversationID,
		Locale:         models.LocaleEnglish,
	}
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AnonymousUserID is the owner of sessions started before sign-in
const AnonymousUserID = "anonymous"

// SessionStatus represents the lifecycle stage of a chat session
type SessionStatus string

const (
	SessionActive   SessionStatus = "ACTIVE"
	SessionIdle     SessionStatus = "IDLE"
	SessionArchived SessionStatus = "ARCHIVED"
)

// ChatSession groups the messages of one conversation
type ChatSession struct {
	ID             uuid.UUID     `json:"id"`
	UserID         string        `json:"userId"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	Status         SessionStatus `json:"status"`
}

// IsAnonymous reports whether the session has not been linked to a user yet
func (s *ChatSession) IsAnonymous() bool {
	return s.UserID == "" || s.UserID == AnonymousUserID
}

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*ChatSession, error)
	// Touch creates the session or bumps its activity, linking an anonymous
	// session to userID when a real user arrives.
	Touch(ctx context.Context, id uuid.UUID, userID string, at time.Time) error
	MarkIdle(ctx context.Context, inactiveSince time.Time) (int64, error)
	Archive(ctx context.Context, inactiveSince time.Time) (int64, error)
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message
type Sender string

const (
	SenderUser  Sender = "USER"
	SenderAgent Sender = "AGENT"
)

// MessageStatus tracks a message through PENDING -> STREAMING -> COMPLETE|ERROR
type MessageStatus string

const (
	StatusPending   MessageStatus = "PENDING"
	StatusStreaming MessageStatus = "STREAMING"
	StatusComplete  MessageStatus = "COMPLETE"
	StatusError     MessageStatus = "ERROR"
)

// IsTerminal reports whether no further transition is allowed
func (s MessageStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// ChatMessage is a single persisted message
type ChatMessage struct {
	ID           uuid.UUID     `json:"id"`
	SessionID    uuid.UUID     `json:"sessionId"`
	Sender       Sender        `json:"sender"`
	Content      string        `json:"content"`
	AgentType    *AgentType    `json:"agentType,omitempty"`
	Status       MessageStatus `json:"status"`
	Timestamp    time.Time     `json:"timestamp"`
	LatencyMs    *int64        `json:"latencyMs,omitempty"`
	ErrorDetails *string       `json:"errorDetails,omitempty"`
}

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	// Create inserts the message. It returns false when a row with the same id already exists.
	Create(ctx context.Context, message *ChatMessage) (bool, error)
	Get(ctx context.Context, id uuid.UUID) (*ChatMessage, error)
	CountUserMessages(ctx context.Context, sessionID uuid.UUID) (int, error)
	// Finish moves a non-terminal message to its terminal state. It returns
	// false when the message was already terminal.
	Finish(ctx context.Context, id uuid.UUID, content string, status MessageStatus, latencyMs int64, errorDetails *string) (bool, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]ChatMessage, error)
}

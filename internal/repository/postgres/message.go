package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Rrens/finance-chat/internal/domain"
)

// MessageRepository implements domain.MessageRepository
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message; an existing id is left untouched
func (r *MessageRepository) Create(ctx context.Context, m *domain.ChatMessage) (bool, error) {
	query := `
		INSERT INTO chat_messages (id, session_id, sender, content, agent_type, status, timestamp, latency_ms, error_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	var agentType *string
	if m.AgentType != nil {
		s := string(*m.AgentType)
		agentType = &s
	}

	tag, err := r.db.Pool.Exec(ctx, query,
		m.ID,
		m.SessionID,
		string(m.Sender),
		m.Content,
		agentType,
		string(m.Status),
		m.Timestamp,
		m.LatencyMs,
		m.ErrorDetails,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create message: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get returns a message by id, or nil when it does not exist
func (r *MessageRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatMessage, error) {
	query := `
		SELECT id, session_id, sender, content, agent_type, status, timestamp, latency_ms, error_details
		FROM chat_messages
		WHERE id = $1
	`

	m, err := scanMessage(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

// CountUserMessages counts messages sent by the user in a session
func (r *MessageRepository) CountUserMessages(ctx context.Context, sessionID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM chat_messages WHERE session_id = $1 AND sender = 'USER'`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count user messages: %w", err)
	}
	return count, nil
}

// Finish writes the terminal state of a message. Terminal rows are never
// rewritten, which keeps status transitions monotonic.
func (r *MessageRepository) Finish(ctx context.Context, id uuid.UUID, content string, status domain.MessageStatus, latencyMs int64, errorDetails *string) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("status %s is not terminal", status)
	}

	query := `
		UPDATE chat_messages
		SET content = $2, status = $3, latency_ms = $4, error_details = $5
		WHERE id = $1 AND status IN ('PENDING', 'STREAMING')
	`
	tag, err := r.db.Pool.Exec(ctx, query, id, content, string(status), latencyMs, errorDetails)
	if err != nil {
		return false, fmt.Errorf("failed to finish message: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListBySession returns the latest messages of a session, oldest first
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	query := `
		SELECT id, session_id, sender, content, agent_type, status, timestamp, latency_ms, error_details
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.ChatMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	// Reverse to return chronological order (oldest first)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func scanMessage(row pgx.Row) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	var sender, status string
	var agentType *string

	if err := row.Scan(
		&m.ID,
		&m.SessionID,
		&sender,
		&m.Content,
		&agentType,
		&status,
		&m.Timestamp,
		&m.LatencyMs,
		&m.ErrorDetails,
	); err != nil {
		return nil, err
	}
	m.Sender = domain.Sender(sender)
	m.Status = domain.MessageStatus(status)
	if agentType != nil {
		at := domain.AgentType(*agentType)
		m.AgentType = &at
	}
	return &m, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Rrens/finance-chat/internal/domain"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	query := `
		SELECT id, user_id, created_at, last_activity_at, status
		FROM chat_sessions
		WHERE id = $1
	`
	var s domain.ChatSession
	var status string
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.UserID,
		&s.CreatedAt,
		&s.LastActivityAt,
		&status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	s.Status = domain.SessionStatus(status)
	return &s, nil
}

// Touch upserts the session in a single statement. An anonymous owner is
// replaced by the first real user id; a known owner is never overwritten.
// Archived sessions only record the activity and stay archived.
func (r *SessionRepository) Touch(ctx context.Context, id uuid.UUID, userID string, at time.Time) error {
	query := `
		INSERT INTO chat_sessions (id, user_id, created_at, last_activity_at, status)
		VALUES ($1, $2, $3, $3, 'ACTIVE')
		ON CONFLICT (id) DO UPDATE SET
			last_activity_at = EXCLUDED.last_activity_at,
			status = CASE
				WHEN chat_sessions.status = 'ARCHIVED' THEN chat_sessions.status
				ELSE 'ACTIVE'
			END,
			user_id = CASE
				WHEN chat_sessions.user_id = 'anonymous' AND EXCLUDED.user_id <> 'anonymous'
				THEN EXCLUDED.user_id
				ELSE chat_sessions.user_id
			END
	`
	if _, err := r.db.Pool.Exec(ctx, query, id, userID, at); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// MarkIdle moves active sessions without activity since the cutoff to IDLE
func (r *SessionRepository) MarkIdle(ctx context.Context, inactiveSince time.Time) (int64, error) {
	query := `
		UPDATE chat_sessions
		SET status = 'IDLE'
		WHERE status = 'ACTIVE' AND last_activity_at < $1
	`
	tag, err := r.db.Pool.Exec(ctx, query, inactiveSince)
	if err != nil {
		return 0, fmt.Errorf("failed to mark sessions idle: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Archive moves idle sessions without activity since the cutoff to ARCHIVED
func (r *SessionRepository) Archive(ctx context.Context, inactiveSince time.Time) (int64, error) {
	query := `
		UPDATE chat_sessions
		SET status = 'ARCHIVED'
		WHERE status = 'IDLE' AND last_activity_at < $1
	`
	tag, err := r.db.Pool.Exec(ctx, query, inactiveSince)
	if err != nil {
		return 0, fmt.Errorf("failed to archive sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

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

// ConnectionRepository implements domain.ConnectionRepository
type ConnectionRepository struct {
	db *DB
}

// NewConnectionRepository creates a new brokerage connection repository
func NewConnectionRepository(db *DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// GetByUser returns the connection of an owner, or nil when none exists
func (r *ConnectionRepository) GetByUser(ctx context.Context, userID string) (*domain.BrokerageConnection, error) {
	query := `
		SELECT id, user_id, zerodha_user_id, access_token, created_at, expires_at,
			status, last_balance_fetch, error_details
		FROM zerodha_connections
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var c domain.BrokerageConnection
	var status string
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&c.ID,
		&c.UserID,
		&c.BrokerUserID,
		&c.AccessToken,
		&c.CreatedAt,
		&c.ExpiresAt,
		&status,
		&c.LastBalanceFetch,
		&c.ErrorDetails,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	c.Status = domain.ConnectionStatus(status)
	return &c, nil
}

// Upsert stores the connection for conn.UserID, replacing any previous one
func (r *ConnectionRepository) Upsert(ctx context.Context, conn *domain.BrokerageConnection) error {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}

	query := `
		INSERT INTO zerodha_connections (id, user_id, zerodha_user_id, access_token, created_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'ACTIVE')
		ON CONFLICT (user_id) DO UPDATE SET
			zerodha_user_id = EXCLUDED.zerodha_user_id,
			access_token = EXCLUDED.access_token,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at,
			status = 'ACTIVE',
			last_balance_fetch = NULL,
			error_details = NULL
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		conn.ID,
		conn.UserID,
		conn.BrokerUserID,
		conn.AccessToken,
		conn.CreatedAt,
		conn.ExpiresAt,
	).Scan(&conn.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert connection: %w", err)
	}

	conn.Status = domain.ConnectionActive
	conn.LastBalanceFetch = nil
	conn.ErrorDetails = nil
	return nil
}

// MarkExpired transitions a live connection to EXPIRED
func (r *ConnectionRepository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE zerodha_connections
		SET status = 'EXPIRED'
		WHERE id = $1 AND status IN ('ACTIVE', 'ERROR')
	`
	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark connection expired: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkError records a broker failure on a live connection
func (r *ConnectionRepository) MarkError(ctx context.Context, id uuid.UUID, details string) error {
	query := `
		UPDATE zerodha_connections
		SET status = 'ERROR', error_details = $2
		WHERE id = $1 AND status IN ('ACTIVE', 'ERROR')
	`
	if _, err := r.db.Pool.Exec(ctx, query, id, details); err != nil {
		return fmt.Errorf("failed to mark connection error: %w", err)
	}
	return nil
}

// RecordBalanceFetch stamps a successful live fetch and clears any error
func (r *ConnectionRepository) RecordBalanceFetch(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE zerodha_connections
		SET last_balance_fetch = $2, status = 'ACTIVE', error_details = NULL
		WHERE id = $1 AND status IN ('ACTIVE', 'ERROR')
	`
	if _, err := r.db.Pool.Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to record balance fetch: %w", err)
	}
	return nil
}

// Revoke disconnects the owner and discards the stored token
func (r *ConnectionRepository) Revoke(ctx context.Context, userID string) (bool, error) {
	query := `
		UPDATE zerodha_connections
		SET status = 'REVOKED', access_token = ''
		WHERE user_id = $1 AND status IN ('ACTIVE', 'ERROR', 'EXPIRED')
	`
	tag, err := r.db.Pool.Exec(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("failed to revoke connection: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

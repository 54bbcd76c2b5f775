package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Rrens/finance-chat/internal/domain"
)

// BalanceRepository implements domain.BalanceRepository. Rows are append-only.
type BalanceRepository struct {
	db *DB
}

// NewBalanceRepository creates a new balance history repository
func NewBalanceRepository(db *DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Insert appends a balance snapshot
func (r *BalanceRepository) Insert(ctx context.Context, h *domain.BalanceHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}

	query := `
		INSERT INTO zerodha_balance_history
			(id, connection_id, available_balance, used_margin, total_balance, currency, timestamp, fetch_latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		h.ID,
		h.ConnectionID,
		h.Available,
		h.Used,
		h.Total,
		h.Currency,
		h.Timestamp,
		h.FetchLatencyMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert balance history: %w", err)
	}
	return nil
}

// Latest returns the newest snapshot for a connection, or nil
func (r *BalanceRepository) Latest(ctx context.Context, connectionID uuid.UUID) (*domain.BalanceHistory, error) {
	query := `
		SELECT id, connection_id, available_balance, used_margin, total_balance, currency, timestamp, fetch_latency_ms
		FROM zerodha_balance_history
		WHERE connection_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`
	var h domain.BalanceHistory
	err := r.db.Pool.QueryRow(ctx, query, connectionID).Scan(
		&h.ID,
		&h.ConnectionID,
		&h.Available,
		&h.Used,
		&h.Total,
		&h.Currency,
		&h.Timestamp,
		&h.FetchLatencyMs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest balance: %w", err)
	}
	return &h, nil
}

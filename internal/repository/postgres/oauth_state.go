package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Rrens/finance-chat/internal/domain"
)

// ErrDuplicateState is returned when a generated state collides with a stored one
var ErrDuplicateState = errors.New("oauth state already exists")

// OAuthStateRepository implements domain.OAuthStateRepository
type OAuthStateRepository struct {
	db *DB
}

// NewOAuthStateRepository creates a new OAuth state repository
func NewOAuthStateRepository(db *DB) *OAuthStateRepository {
	return &OAuthStateRepository{db: db}
}

func (r *OAuthStateRepository) Create(ctx context.Context, s *domain.OAuthState) error {
	query := `
		INSERT INTO zerodha_oauth_states (state, user_id, created_at, used)
		VALUES ($1, $2, $3, FALSE)
	`
	if _, err := r.db.Pool.Exec(ctx, query, s.State, s.UserID, s.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateState
		}
		return fmt.Errorf("failed to create oauth state: %w", err)
	}
	return nil
}

func (r *OAuthStateRepository) Get(ctx context.Context, state string) (*domain.OAuthState, error) {
	query := `
		SELECT state, user_id, created_at, used
		FROM zerodha_oauth_states
		WHERE state = $1
	`
	var s domain.OAuthState
	err := r.db.Pool.QueryRow(ctx, query, state).Scan(&s.State, &s.UserID, &s.CreatedAt, &s.Used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get oauth state: %w", err)
	}
	return &s, nil
}

// MarkUsed consumes the state atomically; only one caller can win
func (r *OAuthStateRepository) MarkUsed(ctx context.Context, state string) (bool, error) {
	query := `UPDATE zerodha_oauth_states SET used = TRUE WHERE state = $1 AND used = FALSE`

	tag, err := r.db.Pool.Exec(ctx, query, state)
	if err != nil {
		return false, fmt.Errorf("failed to mark oauth state used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

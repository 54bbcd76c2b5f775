package postgres

import (
	"context"
	"fmt"

	"github.com/Rrens/finance-chat/internal/domain"
)

// MetricsRepository implements domain.MetricsRepository
type MetricsRepository struct {
	db *DB
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(db *DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// Record appends one agent invocation
func (r *MetricsRepository) Record(ctx context.Context, m *domain.AgentMetrics) error {
	query := `
		INSERT INTO agent_metrics (id, agent_type, timestamp, latency_ms, success, error_code, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		m.ID,
		string(m.AgentType),
		m.Timestamp,
		m.LatencyMs,
		m.Success,
		m.ErrorCode,
		m.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to record agent metrics: %w", err)
	}
	return nil
}

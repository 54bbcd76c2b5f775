package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AgentType selects the agent that answers a message
type AgentType string

const (
	AgentFinance AgentType = "FINANCE"
	AgentGeneral AgentType = "GENERAL"
)

// ParseAgentType accepts only the two known agent types
func ParseAgentType(s string) (AgentType, error) {
	switch AgentType(s) {
	case AgentFinance, AgentGeneral:
		return AgentType(s), nil
	}
	return "", ErrInvalidAgentType
}

// ClassificationResult is the routing verdict for a message
type ClassificationResult struct {
	AgentType  AgentType `json:"agentType"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	LatencyMs  int64     `json:"latencyMs"`
}

// AgentMetrics is an append-only record of one agent invocation
type AgentMetrics struct {
	ID        uuid.UUID `json:"id"`
	AgentType AgentType `json:"agentType"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int64     `json:"latencyMs"`
	Success   bool      `json:"success"`
	ErrorCode *string   `json:"errorCode,omitempty"`
	UserID    string    `json:"userId"`
}

// MetricsRepository defines the interface for agent metrics storage
type MetricsRepository interface {
	Record(ctx context.Context, metrics *AgentMetrics) error
}

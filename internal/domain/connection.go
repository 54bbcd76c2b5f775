package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConnectionStatus is the state of a brokerage connection
type ConnectionStatus string

const (
	ConnectionNotConnected ConnectionStatus = "NOT_CONNECTED"
	ConnectionActive       ConnectionStatus = "ACTIVE"
	ConnectionExpired      ConnectionStatus = "EXPIRED"
	ConnectionRevoked      ConnectionStatus = "REVOKED"
	ConnectionError        ConnectionStatus = "ERROR"
)

// BrokerageConnection links an owner to a broker session.
// AccessToken always holds ciphertext.
type BrokerageConnection struct {
	ID               uuid.UUID        `json:"id"`
	UserID           string           `json:"userId"`
	BrokerUserID     string           `json:"zerodhaUserId"`
	AccessToken      string           `json:"-"`
	CreatedAt        time.Time        `json:"createdAt"`
	ExpiresAt        time.Time        `json:"expiresAt"`
	Status           ConnectionStatus `json:"status"`
	LastBalanceFetch *time.Time       `json:"lastBalanceFetch,omitempty"`
	ErrorDetails     *string          `json:"errorDetails,omitempty"`
}

// IsExpired reports whether the broker session cutoff has passed
func (c *BrokerageConnection) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Usable reports whether the stored token may be used for broker calls
func (c *BrokerageConnection) Usable() bool {
	return c.Status == ConnectionActive || c.Status == ConnectionError
}

// Balance is the canonical account balance
type Balance struct {
	Available decimal.Decimal `json:"availableBalance"`
	Used      decimal.Decimal `json:"usedMargin"`
	Total     decimal.Decimal `json:"totalBalance"`
	Currency  string          `json:"currency"`
	FetchedAt time.Time       `json:"lastUpdated"`
}

// BalanceHistory is an immutable balance snapshot
type BalanceHistory struct {
	ID             uuid.UUID       `json:"id"`
	ConnectionID   uuid.UUID       `json:"connectionId"`
	Available      decimal.Decimal `json:"availableBalance"`
	Used           decimal.Decimal `json:"usedMargin"`
	Total          decimal.Decimal `json:"totalBalance"`
	Currency       string          `json:"currency"`
	Timestamp      time.Time       `json:"timestamp"`
	FetchLatencyMs int64           `json:"fetchLatencyMs"`
}

// Balance converts the snapshot into the canonical balance shape
func (h *BalanceHistory) Balance() *Balance {
	return &Balance{
		Available: h.Available,
		Used:      h.Used,
		Total:     h.Total,
		Currency:  h.Currency,
		FetchedAt: h.Timestamp,
	}
}

// OAuthState is a single-use CSRF token for the broker login round-trip
type OAuthState struct {
	State     string    `json:"state"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	Used      bool      `json:"used"`
}

// IsExpired reports whether the state is older than ttl
func (s *OAuthState) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// ConnectionRepository defines the interface for brokerage connection storage
type ConnectionRepository interface {
	GetByUser(ctx context.Context, userID string) (*BrokerageConnection, error)
	// Upsert creates or replaces the single connection of conn.UserID and
	// resets it to ACTIVE. conn.ID is populated from the stored row.
	Upsert(ctx context.Context, conn *BrokerageConnection) error
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	MarkError(ctx context.Context, id uuid.UUID, details string) error
	RecordBalanceFetch(ctx context.Context, id uuid.UUID, at time.Time) error
	Revoke(ctx context.Context, userID string) (bool, error)
}

// BalanceRepository defines the interface for balance history storage
type BalanceRepository interface {
	Insert(ctx context.Context, h *BalanceHistory) error
	Latest(ctx context.Context, connectionID uuid.UUID) (*BalanceHistory, error)
}

// OAuthStateRepository defines the interface for OAuth state storage
type OAuthStateRepository interface {
	Create(ctx context.Context, state *OAuthState) error
	Get(ctx context.Context, state string) (*OAuthState, error)
	// MarkUsed consumes the state. It returns false when it was already used.
	MarkUsed(ctx context.Context, state string) (bool, error)
}

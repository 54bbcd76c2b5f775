package kite

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// envelope is the common Kite response wrapper
type envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
}

// APIError is a non-success Kite response
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("kite api error %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("kite api error %d: %s", e.StatusCode, e.Message)
}

// IsTokenError reports whether the access token was rejected
func (e *APIError) IsTokenError() bool {
	return e.Type == "TokenException" || e.StatusCode == 403
}

// Session is the result of a request token exchange
type Session struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	Email       string `json:"email"`
}

// Profile is the broker user profile
type Profile struct {
	UserID    string   `json:"user_id"`
	UserName  string   `json:"user_name"`
	Email     string   `json:"email"`
	Broker    string   `json:"broker"`
	Exchanges []string `json:"exchanges"`
	Products  []string `json:"products"`
}

// Margins is the equity segment of the margins response
type Margins struct {
	Equity struct {
		Net       decimal.Decimal `json:"net"`
		Available struct {
			LiveBalance *decimal.Decimal `json:"live_balance"`
			Cash        decimal.Decimal  `json:"cash"`
			Collateral  decimal.Decimal  `json:"collateral"`
		} `json:"available"`
		Utilised struct {
			Debits decimal.Decimal `json:"debits"`
		} `json:"utilised"`
	} `json:"equity"`
}

// AvailableBalance prefers the live balance and falls back to cash
func (m *Margins) AvailableBalance() decimal.Decimal {
	if m.Equity.Available.LiveBalance != nil {
		return *m.Equity.Available.LiveBalance
	}
	return m.Equity.Available.Cash
}

// Holding is one long-term position in the demat account
type Holding struct {
	TradingSymbol       string          `json:"tradingsymbol"`
	Exchange            string          `json:"exchange"`
	Quantity            int64           `json:"quantity"`
	AveragePrice        decimal.Decimal `json:"average_price"`
	LastPrice           decimal.Decimal `json:"last_price"`
	ClosePrice          decimal.Decimal `json:"close_price"`
	PnL                 decimal.Decimal `json:"pnl"`
	DayChange           decimal.Decimal `json:"day_change"`
	DayChangePercentage decimal.Decimal `json:"day_change_percentage"`
	Product             string          `json:"product"`
}

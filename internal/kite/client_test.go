package kite

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/finance-chat/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.BrokerConfig{
		APIKey:    "key",
		APISecret: "secret",
		BaseURL:   srv.URL,
	})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func TestChecksum(t *testing.T) {
	got := Checksum("key", "token", "secret")
	assert.Equal(t, "08a03d928417ea4085557933d3b187ff2a3515b039d6054dbd230c95d978a17a", got)
	assert.NotEqual(t, got, Checksum("key", "token2", "secret"))
}

func TestLoginURL(t *testing.T) {
	c := NewClient(config.BrokerConfig{APIKey: "key", APISecret: "secret"})
	raw := c.LoginURL("abc123")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "kite.zerodha.com", u.Host)
	assert.Equal(t, "key", u.Query().Get("api_key"))
	assert.Equal(t, "3", u.Query().Get("v"))
	assert.Equal(t, "state=abc123", u.Query().Get("redirect_params"))
}

func TestGenerateSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/session/token", r.URL.Path)
		assert.Equal(t, "3", r.Header.Get("X-Kite-Version"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "key", r.PostForm.Get("api_key"))
		assert.Equal(t, "rt", r.PostForm.Get("request_token"))
		assert.Equal(t, Checksum("key", "rt", "secret"), r.PostForm.Get("checksum"))

		writeJSON(w, http.StatusOK, `{"status":"success","data":{"access_token":"at","user_id":"AB1234","user_name":"Asha","email":"a@example.com"}}`)
	})

	s, err := c.GenerateSession(context.Background(), "rt")
	require.NoError(t, err)
	assert.Equal(t, "at", s.AccessToken)
	assert.Equal(t, "AB1234", s.UserID)
}

func TestGenerateSession_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"status":"error","message":"Token is invalid or has expired.","error_type":"TokenException"}`)
	})

	_, err := c.GenerateSession(context.Background(), "rt")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsTokenError())
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestGenerateSession_NotConfigured(t *testing.T) {
	c := NewClient(config.BrokerConfig{})
	_, err := c.GenerateSession(context.Background(), "rt")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMargins(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/margins", r.URL.Path)
		assert.Equal(t, "token key:at", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"status":"success","data":{"equity":{"net":99725.05,"available":{"live_balance":97222.85,"cash":99725.05},"utilised":{"debits":2502.2}}}}`)
	})

	m, err := c.Margins(context.Background(), "at")
	require.NoError(t, err)
	assert.True(t, m.AvailableBalance().Equal(decimal.RequireFromString("97222.85")))
	assert.True(t, m.Equity.Utilised.Debits.Equal(decimal.RequireFromString("2502.2")))
	assert.True(t, m.Equity.Net.Equal(decimal.RequireFromString("99725.05")))
}

func TestMargins_CashFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"success","data":{"equity":{"net":500,"available":{"cash":450},"utilised":{"debits":50}}}}`)
	})

	m, err := c.Margins(context.Background(), "at")
	require.NoError(t, err)
	assert.True(t, m.AvailableBalance().Equal(decimal.NewFromInt(450)))
}

func TestHoldings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/portfolio/holdings", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"status":"success","data":[
			{"tradingsymbol":"INFY","exchange":"NSE","quantity":10,"average_price":1400.5,"last_price":1500,"pnl":995,"day_change":-12.5,"day_change_percentage":-0.83}
		]}`)
	})

	holdings, err := c.Holdings(context.Background(), "at")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "INFY", holdings[0].TradingSymbol)
	assert.EqualValues(t, 10, holdings[0].Quantity)
	assert.True(t, holdings[0].DayChange.Equal(decimal.RequireFromString("-12.5")))
}

func TestRaw_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream down")
	})

	_, err := c.Raw(context.Background(), "at", "/orders")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.False(t, apiErr.IsTokenError())
}

func TestSessionExpiry(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before reset",
			now:  time.Date(2026, 3, 10, 5, 59, 0, 0, ist),
			want: time.Date(2026, 3, 10, 6, 0, 0, 0, ist),
		},
		{
			name: "at reset",
			now:  time.Date(2026, 3, 10, 6, 0, 0, 0, ist),
			want: time.Date(2026, 3, 11, 6, 0, 0, 0, ist),
		},
		{
			name: "afternoon",
			now:  time.Date(2026, 3, 10, 15, 30, 0, 0, ist),
			want: time.Date(2026, 3, 11, 6, 0, 0, 0, ist),
		},
		{
			name: "utc input",
			now:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), // 05:30 IST
			want: time.Date(2026, 3, 10, 6, 0, 0, 0, ist),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, SessionExpiry(tt.now).Equal(tt.want), "got %s", SessionExpiry(tt.now))
		})
	}
}

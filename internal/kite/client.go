package kite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Rrens/finance-chat/internal/config"
	"github.com/Rrens/finance-chat/internal/logging"
)

const (
	defaultBaseURL  = "https://api.kite.trade"
	defaultLoginURL = "https://kite.zerodha.com/connect/login"
	apiVersion      = "3"
)

// ErrNotConfigured is returned when the API key or secret is missing
var ErrNotConfigured = errors.New("kite api credentials not configured")

// Client talks to the Kite Connect REST API
type Client struct {
	client    *resty.Client
	apiKey    string
	apiSecret string
	loginURL  string
}

// NewClient creates a new Kite client
func NewClient(cfg config.BrokerConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	loginURL := cfg.LoginURL
	if loginURL == "" {
		loginURL = defaultLoginURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("X-Kite-Version", apiVersion)

	return &Client{
		client:    client,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		loginURL:  loginURL,
	}
}

// IsConfigured reports whether API credentials are present
func (c *Client) IsConfigured() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// LoginURL returns the broker login page URL. Kite echoes redirect_params
// back on the callback, which carries the CSRF state.
func (c *Client) LoginURL(state string) string {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("v", apiVersion)
	q.Set("redirect_params", "state="+url.QueryEscape(state))
	return c.loginURL + "?" + q.Encode()
}

// Checksum is SHA-256(api_key + request_token + api_secret) as hex
func Checksum(apiKey, requestToken, apiSecret string) string {
	sum := sha256.Sum256([]byte(apiKey + requestToken + apiSecret))
	return hex.EncodeToString(sum[:])
}

// GenerateSession exchanges a request token for an access token
func (c *Client) GenerateSession(ctx context.Context, requestToken string) (*Session, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	req := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"api_key":       c.apiKey,
			"request_token": requestToken,
			"checksum":      Checksum(c.apiKey, requestToken, c.apiSecret),
		})

	var session Session
	if err := c.do(req, "POST", "/session/token", &session); err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, errors.New("kite session response has no access token")
	}
	return &session, nil
}

// Profile returns the user profile
func (c *Client) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	var out Profile
	if err := c.get(ctx, accessToken, "/user/profile", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Margins returns the account margins
func (c *Client) Margins(ctx context.Context, accessToken string) (*Margins, error) {
	var out Margins
	if err := c.get(ctx, accessToken, "/user/margins", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Holdings returns the demat holdings
func (c *Client) Holdings(ctx context.Context, accessToken string) ([]Holding, error) {
	out := []Holding{}
	if err := c.get(ctx, accessToken, "/portfolio/holdings", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Raw returns the unwrapped data of any GET endpoint
func (c *Client) Raw(ctx context.Context, accessToken, path string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.get(ctx, accessToken, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, accessToken, path string, out any) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, accessToken))
	return c.do(req, "GET", path, out)
}

func (c *Client) do(req *resty.Request, method, path string, out any) error {
	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		logging.APICall("kite", path, time.Since(start).Milliseconds(), 0)
		return fmt.Errorf("kite request failed: %w", err)
	}
	logging.APICall("kite", path, time.Since(start).Milliseconds(), resp.StatusCode())

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		if resp.IsError() {
			return &APIError{StatusCode: resp.StatusCode(), Message: resp.Status()}
		}
		return fmt.Errorf("failed to parse kite response: %w", err)
	}

	if resp.IsError() || env.Status == "error" {
		return &APIError{StatusCode: resp.StatusCode(), Type: env.ErrorType, Message: env.Message}
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse kite data: %w", err)
	}
	return nil
}

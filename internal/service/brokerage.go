package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/finance-chat/internal/agent"
	"github.com/Rrens/finance-chat/internal/domain"
	"github.com/Rrens/finance-chat/internal/kite"
	"github.com/Rrens/finance-chat/internal/security"
)

const (
	defaultBalanceTTL = 5 * time.Minute
	defaultStateTTL   = 15 * time.Minute
	currencyINR       = "INR"
)

// Callback redirect error codes
const (
	CallbackOAuthFailed = "oauth_failed"
	CallbackTokenFailed = "token_failed"
	CallbackError       = "callback_error"
)

// ErrUnknownResource is returned for a passthrough that is not exposed
var ErrUnknownResource = errors.New("unknown brokerage resource")

// passthroughPaths maps exposed resources to Kite endpoints
var passthroughPaths = map[string]string{
	"profile":   "/user/profile",
	"holdings":  "/portfolio/holdings",
	"positions": "/portfolio/positions",
	"margins":   "/user/margins",
	"orders":    "/orders",
}

// BrokerClient is the subset of the Kite API the connector uses
type BrokerClient interface {
	IsConfigured() bool
	LoginURL(state string) string
	GenerateSession(ctx context.Context, requestToken string) (*kite.Session, error)
	Profile(ctx context.Context, accessToken string) (*kite.Profile, error)
	Margins(ctx context.Context, accessToken string) (*kite.Margins, error)
	Holdings(ctx context.Context, accessToken string) ([]kite.Holding, error)
	Raw(ctx context.Context, accessToken, path string) (json.RawMessage, error)
}

// TokenCipher seals access tokens at rest
type TokenCipher interface {
	EncryptToken(plaintext string) (string, error)
	DecryptToken(ciphertext string) (string, error)
}

// OAuthInitiation is the start of a broker login
type OAuthInitiation struct {
	OAuthURL string `json:"oauthUrl"`
	State    string `json:"state"`
}

// CallbackInput is what the broker appends to the redirect URL
type CallbackInput struct {
	RequestToken string
	Status       string
	State        string
}

// StatusReport describes the owner's brokerage connection
type StatusReport struct {
	Status             domain.ConnectionStatus `json:"status"`
	IsConnected        bool                    `json:"isConnected"`
	ZerodhaUserID      string                  `json:"zerodhaUserId,omitempty"`
	Balance            *domain.Balance         `json:"balance,omitempty"`
	ExpiresAt          *time.Time              `json:"expiresAt,omitempty"`
	MinutesUntilExpiry *int64                  `json:"minutesUntilExpiry,omitempty"`
	ErrorDetails       *string                 `json:"errorDetails,omitempty"`
}

// BalanceResult is a balance together with its provenance
type BalanceResult struct {
	Balance   *domain.Balance
	FromCache bool
}

// BrokerageService implements the Zerodha connector: OAuth, status, balance
// and read-only passthroughs
type BrokerageService struct {
	connectionRepo domain.ConnectionRepository
	balanceRepo    domain.BalanceRepository
	stateRepo      domain.OAuthStateRepository
	broker         BrokerClient
	cipher         TokenCipher
	frontendURL    string
	balanceTTL     time.Duration
	stateTTL       time.Duration
	now            func() time.Time
}

// NewBrokerageService creates a new brokerage service
func NewBrokerageService(
	connectionRepo domain.ConnectionRepository,
	balanceRepo domain.BalanceRepository,
	stateRepo domain.OAuthStateRepository,
	broker BrokerClient,
	cipher TokenCipher,
	frontendURL string,
	balanceTTL time.Duration,
	stateTTL time.Duration,
) *BrokerageService {
	if balanceTTL <= 0 {
		balanceTTL = defaultBalanceTTL
	}
	if stateTTL <= 0 {
		stateTTL = defaultStateTTL
	}
	return &BrokerageService{
		connectionRepo: connectionRepo,
		balanceRepo:    balanceRepo,
		stateRepo:      stateRepo,
		broker:         broker,
		cipher:         cipher,
		frontendURL:    frontendURL,
		balanceTTL:     balanceTTL,
		stateTTL:       stateTTL,
		now:            time.Now,
	}
}

// InitiateOAuth stores a fresh CSRF state and returns the broker login URL
func (s *BrokerageService) InitiateOAuth(ctx context.Context, ownerID string) (*OAuthInitiation, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	if !s.broker.IsConfigured() {
		return nil, domain.ErrBrokerNotConfigured
	}

	state, err := security.NewOAuthState()
	if err != nil {
		return nil, err
	}

	if err := s.stateRepo.Create(ctx, &domain.OAuthState{
		State:     state,
		UserID:    ownerID,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to store oauth state: %w", err)
	}

	log.Info().Str("user_id", ownerID).Msg("zerodha oauth initiated")
	return &OAuthInitiation{OAuthURL: s.broker.LoginURL(state), State: state}, nil
}

// HandleCallback completes the broker login and returns the frontend
// redirect. Invalid, used and expired states are returned as errors; every
// later failure is reported through the redirect URL.
func (s *BrokerageService) HandleCallback(ctx context.Context, in CallbackInput) (string, error) {
	if in.State == "" {
		return "", domain.ErrStateNotFound
	}

	st, err := s.stateRepo.Get(ctx, in.State)
	if err != nil {
		log.Error().Err(err).Msg("failed to load oauth state")
		return s.redirect("error", CallbackError), nil
	}
	if st == nil {
		log.Warn().Msg("oauth callback with unknown state")
		return "", domain.ErrStateNotFound
	}
	if st.Used {
		log.Warn().Str("user_id", st.UserID).Msg("oauth state replayed")
		return "", domain.ErrStateUsed
	}
	if st.IsExpired(s.now(), s.stateTTL) {
		log.Warn().Str("user_id", st.UserID).Msg("oauth state expired")
		return "", domain.ErrStateExpired
	}

	// consumed before the exchange so a failed exchange cannot be replayed
	consumed, err := s.stateRepo.MarkUsed(ctx, in.State)
	if err != nil {
		log.Error().Err(err).Msg("failed to consume oauth state")
		return s.redirect("error", CallbackError), nil
	}
	if !consumed {
		return "", domain.ErrStateUsed
	}

	if in.Status != "success" || in.RequestToken == "" {
		log.Warn().Str("user_id", st.UserID).Str("status", in.Status).Msg("zerodha authorization failed")
		return s.redirect("error", CallbackOAuthFailed), nil
	}

	session, err := s.broker.GenerateSession(ctx, in.RequestToken)
	if err != nil {
		log.Error().Err(err).Str("user_id", st.UserID).Msg("zerodha token exchange failed")
		return s.redirect("error", CallbackTokenFailed), nil
	}

	if err := s.storeSession(ctx, st.UserID, session); err != nil {
		log.Error().Err(err).Str("user_id", st.UserID).Msg("zerodha callback failed")
		return s.redirect("error", CallbackError), nil
	}

	return s.redirect("connected", "true"), nil
}

func (s *BrokerageService) storeSession(ctx context.Context, ownerID string, session *kite.Session) error {
	profile, err := s.broker.Profile(ctx, session.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	sealed, err := s.cipher.EncryptToken(session.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	now := s.now()
	conn := &domain.BrokerageConnection{
		ID:           uuid.New(),
		UserID:       ownerID,
		BrokerUserID: profile.UserID,
		AccessToken:  sealed,
		CreatedAt:    now,
		ExpiresAt:    kite.SessionExpiry(now),
	}
	if err := s.connectionRepo.Upsert(ctx, conn); err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}

	log.Info().
		Str("user_id", ownerID).
		Str("zerodha_user_id", profile.UserID).
		Time("expires_at", conn.ExpiresAt).
		Msg("zerodha connected")
	return nil
}

func (s *BrokerageService) redirect(key, value string) string {
	q := url.Values{}
	q.Set(key, value)
	return s.frontendURL + "/dashboard?" + q.Encode()
}

// connection returns the owner's usable connection, lazily expiring it
func (s *BrokerageService) connection(ctx context.Context, ownerID string) (*domain.BrokerageConnection, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}

	conn, err := s.connectionRepo.GetByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if conn == nil || !conn.Usable() {
		return nil, domain.ErrNotConnected
	}

	if conn.IsExpired(s.now()) {
		if _, err := s.connectionRepo.MarkExpired(ctx, conn.ID); err != nil {
			return nil, fmt.Errorf("failed to expire connection: %w", err)
		}
		log.Info().Str("user_id", ownerID).Msg("zerodha session expired")
		return nil, domain.ErrNotConnected
	}

	return conn, nil
}

// accessToken decrypts the stored token for a single outbound call
func (s *BrokerageService) accessToken(ctx context.Context, ownerID string) (*domain.BrokerageConnection, string, error) {
	conn, err := s.connection(ctx, ownerID)
	if err != nil {
		return nil, "", err
	}

	token, err := s.cipher.DecryptToken(conn.AccessToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return conn, token, nil
}

// Status reports the connection state with a best-effort balance
func (s *BrokerageService) Status(ctx context.Context, ownerID string) (*StatusReport, error) {
	conn, err := s.connection(ctx, ownerID)
	if errors.Is(err, domain.ErrNotConnected) {
		return &StatusReport{Status: domain.ConnectionNotConnected}, nil
	}
	if err != nil {
		return nil, err
	}

	expiresAt := conn.ExpiresAt
	minutes := int64(expiresAt.Sub(s.now()).Minutes())
	report := &StatusReport{
		Status:             conn.Status,
		IsConnected:        true,
		ZerodhaUserID:      conn.BrokerUserID,
		ExpiresAt:          &expiresAt,
		MinutesUntilExpiry: &minutes,
		ErrorDetails:       conn.ErrorDetails,
	}

	result, err := s.fetchBalance(ctx, conn, false)
	if err != nil {
		details := domain.ErrBalanceUnavailable.Error()
		report.Status = domain.ConnectionError
		report.ErrorDetails = &details
		return report, nil
	}

	report.Balance = result.Balance
	if !result.FromCache {
		report.Status = domain.ConnectionActive
		report.ErrorDetails = nil
	}
	return report, nil
}

// FetchBalance returns the cached balance when it is younger than the TTL
// and force is false; otherwise it asks the broker
func (s *BrokerageService) FetchBalance(ctx context.Context, ownerID string, force bool) (*BalanceResult, error) {
	conn, err := s.connection(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.fetchBalance(ctx, conn, force)
}

func (s *BrokerageService) fetchBalance(ctx context.Context, conn *domain.BrokerageConnection, force bool) (*BalanceResult, error) {
	if !force {
		latest, err := s.balanceRepo.Latest(ctx, conn.ID)
		if err != nil {
			log.Warn().Err(err).Str("connection_id", conn.ID.String()).Msg("failed to read cached balance")
		} else if latest != nil && s.now().Sub(latest.Timestamp) < s.balanceTTL {
			return &BalanceResult{Balance: latest.Balance(), FromCache: true}, nil
		}
	}

	start := s.now()
	balance, err := s.liveBalance(ctx, conn)
	if err != nil {
		log.Error().Err(err).Str("user_id", conn.UserID).Msg("zerodha balance fetch failed")
		if markErr := s.connectionRepo.MarkError(ctx, conn.ID, err.Error()); markErr != nil {
			log.Error().Err(markErr).Str("connection_id", conn.ID.String()).Msg("failed to mark connection error")
		}
		return nil, fmt.Errorf("failed to fetch balance: %w", domain.ErrBalanceUnavailable)
	}

	now := s.now()
	history := &domain.BalanceHistory{
		ID:             uuid.New(),
		ConnectionID:   conn.ID,
		Available:      balance.Available,
		Used:           balance.Used,
		Total:          balance.Total,
		Currency:       balance.Currency,
		Timestamp:      now,
		FetchLatencyMs: now.Sub(start).Milliseconds(),
	}
	if err := s.balanceRepo.Insert(ctx, history); err != nil {
		return nil, fmt.Errorf("failed to save balance: %w", err)
	}
	if err := s.connectionRepo.RecordBalanceFetch(ctx, conn.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update connection: %w", err)
	}

	return &BalanceResult{Balance: history.Balance()}, nil
}

func (s *BrokerageService) liveBalance(ctx context.Context, conn *domain.BrokerageConnection) (*domain.Balance, error) {
	token, err := s.cipher.DecryptToken(conn.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	margins, err := s.broker.Margins(ctx, token)
	if err != nil {
		return nil, err
	}

	return &domain.Balance{
		Available: margins.AvailableBalance(),
		Used:      margins.Equity.Utilised.Debits,
		Total:     margins.Equity.Net,
		Currency:  currencyINR,
	}, nil
}

// Disconnect revokes the owner's connection and blanks the stored token
func (s *BrokerageService) Disconnect(ctx context.Context, ownerID string) (bool, error) {
	if ownerID == "" {
		return false, domain.ErrOwnerRequired
	}

	revoked, err := s.connectionRepo.Revoke(ctx, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to revoke connection: %w", err)
	}
	if revoked {
		log.Info().Str("user_id", ownerID).Msg("zerodha disconnected")
	}
	return revoked, nil
}

// Passthrough returns the raw broker payload of an exposed resource
func (s *BrokerageService) Passthrough(ctx context.Context, ownerID, resource string) (json.RawMessage, error) {
	path, ok := passthroughPaths[resource]
	if !ok {
		return nil, ErrUnknownResource
	}

	conn, token, err := s.accessToken(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	data, err := s.broker.Raw(ctx, token, path)
	if err != nil {
		s.flagTokenError(ctx, conn, err)
		return nil, fmt.Errorf("failed to fetch %s: %w", resource, err)
	}
	return data, nil
}

// flagTokenError moves the connection to ERROR when the broker rejected the token
func (s *BrokerageService) flagTokenError(ctx context.Context, conn *domain.BrokerageConnection, err error) {
	var apiErr *kite.APIError
	if !errors.As(err, &apiErr) || !apiErr.IsTokenError() {
		return
	}
	if markErr := s.connectionRepo.MarkError(ctx, conn.ID, apiErr.Error()); markErr != nil {
		log.Error().Err(markErr).Str("connection_id", conn.ID.String()).Msg("failed to mark connection error")
	}
}

// Account implements agent.PortfolioSource
func (s *BrokerageService) Account(ctx context.Context, ownerID string) (*agent.Account, error) {
	conn, err := s.connection(ctx, ownerID)
	if errors.Is(err, domain.ErrNotConnected) {
		return &agent.Account{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent.Account{Connected: true, BrokerUserID: conn.BrokerUserID}, nil
}

// Holdings implements agent.PortfolioSource
func (s *BrokerageService) Holdings(ctx context.Context, ownerID string) ([]kite.Holding, error) {
	conn, token, err := s.accessToken(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.broker.Holdings(ctx, token)
	if err != nil {
		s.flagTokenError(ctx, conn, err)
		return nil, fmt.Errorf("failed to fetch holdings: %w", err)
	}
	return holdings, nil
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/finance-chat/internal/kite"
	"github.com/Rrens/finance-chat/internal/llm"
	"github.com/Rrens/finance-chat/internal/logging"
)

const (
	financeMaxTokens   = 2000
	financeTemperature = 0.7
	financeTimeout     = 10 * time.Second
	financeConfidence  = 0.85
	financeEmpty       = "I'm unable to analyze this query at the moment."
)

// ErrFinanceUnavailable is returned by Analyze for any provider failure
var ErrFinanceUnavailable = errors.New("finance agent unavailable")

// Account is the brokerage connection state seen by the agent
type Account struct {
	Connected    bool
	BrokerUserID string
}

// PortfolioSource is the read-only brokerage view the finance agent uses
type PortfolioSource interface {
	Account(ctx context.Context, ownerID string) (*Account, error)
	Holdings(ctx context.Context, ownerID string) ([]kite.Holding, error)
}

// FinanceAnswer is the non-streaming reply of the finance agent
type FinanceAnswer struct {
	Answer           string   `json:"answer"`
	Confidence       float64  `json:"confidence"`
	Sources          []string `json:"sources"`
	ProcessingTimeMs int64    `json:"processingTimeMs"`
}

// StreamRequest asks for a streamed analysis. OwnerID identifies the
// brokerage connection when HasBrokerage is set.
type StreamRequest struct {
	Question     string
	HasBrokerage bool
	OwnerID      string
}

// Finance answers financial analysis questions
type Finance struct {
	provider  llm.Provider
	model     string
	timeout   time.Duration
	portfolio PortfolioSource
}

// NewFinance creates the finance agent. portfolio may be nil when no
// brokerage integration is configured.
func NewFinance(provider llm.Provider, model string, timeout time.Duration, portfolio PortfolioSource) *Finance {
	if timeout <= 0 {
		timeout = financeTimeout
	}
	return &Finance{
		provider:  provider,
		model:     model,
		timeout:   timeout,
		portfolio: portfolio,
	}
}

func (f *Finance) request(system, question string) llm.Request {
	req := llm.Prompt(system, question)
	req.Model = f.model
	req.MaxTokens = financeMaxTokens
	req.Temperature = financeTemperature
	return req
}

// Analyze returns a complete answer in one call
func (f *Finance) Analyze(ctx context.Context, question string) (*FinanceAnswer, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.provider.Complete(ctx, f.request(financeSystemPrompt, question))
	if err != nil {
		logging.APIError(err, "finance_agent", question)
		return nil, ErrFinanceUnavailable
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		answer = financeEmpty
	}

	return &FinanceAnswer{
		Answer:           answer,
		Confidence:       financeConfidence,
		Sources:          []string{"General financial knowledge"},
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// Stream returns the answer as a lazy sequence of fragments. Brokerage data
// is injected into the system prompt only when the connector is attached.
// Errors from the returned stream are logged before they reach the caller.
func (f *Finance) Stream(ctx context.Context, req StreamRequest) (llm.Stream, error) {
	system := f.systemPrompt(ctx, req)

	s, err := f.provider.Stream(ctx, f.request(system, req.Question))
	if err != nil {
		logging.APIError(err, "finance_agent_stream", req.Question)
		return nil, fmt.Errorf("failed to start finance stream: %w", err)
	}
	return &loggedStream{Stream: s, question: req.Question}, nil
}

func (f *Finance) systemPrompt(ctx context.Context, req StreamRequest) string {
	system := financeStreamSystemPrompt

	attached := req.HasBrokerage && req.OwnerID != ""
	if !attached {
		return system
	}

	portfolio, ok := f.portfolioContext(ctx, req.OwnerID)
	if !ok {
		log.Warn().Str("owner_id", req.OwnerID).Msg("brokerage attached but not connected")
		return system + "\n\n" + notConnectedNote
	}

	return system +
		"\n\n" + brokerageToolsDescription +
		"\n\n" + portfolioDataHeader + "\n" + portfolio + "\n" + portfolioDataFooter +
		"\n\n" + realDataInstruction
}

// portfolioContext renders the owner's holdings; ok is false when the
// owner has no usable connection
func (f *Finance) portfolioContext(ctx context.Context, ownerID string) (string, bool) {
	if f.portfolio == nil {
		return "", false
	}

	acct, err := f.portfolio.Account(ctx, ownerID)
	if err != nil {
		logging.APIError(err, "brokerage_context", "")
		return "", false
	}
	if acct == nil || !acct.Connected {
		return "", false
	}

	holdings, err := f.portfolio.Holdings(ctx, ownerID)
	if err != nil {
		logging.APIError(err, "brokerage_holdings", "")
		return fmt.Sprintf("Zerodha connected as %s, but holdings could not be fetched.", acct.BrokerUserID), true
	}

	if len(holdings) == 0 {
		return fmt.Sprintf("Zerodha connected as %s. No holdings found in the account.", acct.BrokerUserID), true
	}

	return RenderHoldings(acct.BrokerUserID, holdings), true
}

type loggedStream struct {
	llm.Stream
	question string
}

func (s *loggedStream) Recv() (string, error) {
	chunk, err := s.Stream.Recv()
	if err != nil && err != io.EOF {
		logging.APIError(err, "finance_agent_stream", s.question)
	}
	return chunk, err
}

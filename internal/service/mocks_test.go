package service

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Rrens/finance-chat/internal/agent"
	"github.com/Rrens/finance-chat/internal/domain"
	"github.com/Rrens/finance-chat/internal/kite"
	"github.com/Rrens/finance-chat/internal/llm"
)

// MockSessionRepository mocks the SessionRepository interface
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) Touch(ctx context.Context, id uuid.UUID, userID string, at time.Time) error {
	args := m.Called(ctx, id, userID, at)
	return args.Error(0)
}

func (m *MockSessionRepository) MarkIdle(ctx context.Context, inactiveSince time.Time) (int64, error) {
	args := m.Called(ctx, inactiveSince)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessionRepository) Archive(ctx context.Context, inactiveSince time.Time) (int64, error) {
	args := m.Called(ctx, inactiveSince)
	return args.Get(0).(int64), args.Error(1)
}

// MockMessageRepository mocks the MessageRepository interface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.ChatMessage) (bool, error) {
	args := m.Called(ctx, message)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatMessage), args.Error(1)
}

func (m *MockMessageRepository) CountUserMessages(ctx context.Context, sessionID uuid.UUID) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *MockMessageRepository) Finish(ctx context.Context, id uuid.UUID, content string, status domain.MessageStatus, latencyMs int64, errorDetails *string) (bool, error) {
	args := m.Called(ctx, id, content, status, latencyMs, errorDetails)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, sessionID, limit)
	return args.Get(0).([]domain.ChatMessage), args.Error(1)
}

// MockMetricsRepository mocks the MetricsRepository interface
type MockMetricsRepository struct {
	mock.Mock
}

func (m *MockMetricsRepository) Record(ctx context.Context, metrics *domain.AgentMetrics) error {
	args := m.Called(ctx, metrics)
	return args.Error(0)
}

// MockClassifier mocks the Classifier interface
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, content string) *domain.ClassificationResult {
	args := m.Called(ctx, content)
	return args.Get(0).(*domain.ClassificationResult)
}

// MockFinanceAgent mocks the FinanceAgent interface
type MockFinanceAgent struct {
	mock.Mock
}

func (m *MockFinanceAgent) Stream(ctx context.Context, req agent.StreamRequest) (llm.Stream, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(llm.Stream), args.Error(1)
}

// MockGeneralAgent mocks the GeneralAgent interface
type MockGeneralAgent struct {
	mock.Mock
}

func (m *MockGeneralAgent) Answer(ctx context.Context, question string) *agent.GeneralAnswer {
	args := m.Called(ctx, question)
	return args.Get(0).(*agent.GeneralAnswer)
}

// MockConnectionRepository mocks the ConnectionRepository interface
type MockConnectionRepository struct {
	mock.Mock
}

func (m *MockConnectionRepository) GetByUser(ctx context.Context, userID string) (*domain.BrokerageConnection, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BrokerageConnection), args.Error(1)
}

func (m *MockConnectionRepository) Upsert(ctx context.Context, conn *domain.BrokerageConnection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockConnectionRepository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockConnectionRepository) MarkError(ctx context.Context, id uuid.UUID, details string) error {
	args := m.Called(ctx, id, details)
	return args.Error(0)
}

func (m *MockConnectionRepository) RecordBalanceFetch(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockConnectionRepository) Revoke(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// MockBalanceRepository mocks the BalanceRepository interface
type MockBalanceRepository struct {
	mock.Mock
}

func (m *MockBalanceRepository) Insert(ctx context.Context, h *domain.BalanceHistory) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockBalanceRepository) Latest(ctx context.Context, connectionID uuid.UUID) (*domain.BalanceHistory, error) {
	args := m.Called(ctx, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceHistory), args.Error(1)
}

// MockOAuthStateRepository mocks the OAuthStateRepository interface
type MockOAuthStateRepository struct {
	mock.Mock
}

func (m *MockOAuthStateRepository) Create(ctx context.Context, state *domain.OAuthState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockOAuthStateRepository) Get(ctx context.Context, state string) (*domain.OAuthState, error) {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OAuthState), args.Error(1)
}

func (m *MockOAuthStateRepository) MarkUsed(ctx context.Context, state string) (bool, error) {
	args := m.Called(ctx, state)
	return args.Bool(0), args.Error(1)
}

// MockBrokerClient mocks the BrokerClient interface
type MockBrokerClient struct {
	mock.Mock
}

func (m *MockBrokerClient) IsConfigured() bool {
	return m.Called().Bool(0)
}

func (m *MockBrokerClient) LoginURL(state string) string {
	return "https://kite.zerodha.com/connect/login?api_key=key&v=3&state=" + state
}

func (m *MockBrokerClient) GenerateSession(ctx context.Context, requestToken string) (*kite.Session, error) {
	args := m.Called(ctx, requestToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kite.Session), args.Error(1)
}

func (m *MockBrokerClient) Profile(ctx context.Context, accessToken string) (*kite.Profile, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kite.Profile), args.Error(1)
}

func (m *MockBrokerClient) Margins(ctx context.Context, accessToken string) (*kite.Margins, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kite.Margins), args.Error(1)
}

func (m *MockBrokerClient) Holdings(ctx context.Context, accessToken string) ([]kite.Holding, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]kite.Holding), args.Error(1)
}

func (m *MockBrokerClient) Raw(ctx context.Context, accessToken, path string) (json.RawMessage, error) {
	args := m.Called(ctx, accessToken, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// sliceStream replays fixed chunks, then err or io.EOF
type sliceStream struct {
	chunks []string
	err    error
	closed bool
}

func (s *sliceStream) Recv() (string, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

package handler_test

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/Rrens/finance-chat/internal/domain"
	"github.com/Rrens/finance-chat/internal/service"
)

// MockChatService mocks handler.ChatService
type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Send(ctx context.Context, in service.SendInput) (*service.SendOutcome, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SendOutcome), args.Error(1)
}

func (m *MockChatService) Stream(ctx context.Context, in service.StreamInput, emit service.Emitter) error {
	args := m.Called(ctx, in, emit)
	return args.Error(0)
}

func (m *MockChatService) Messages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChatMessage), args.Error(1)
}

func (m *MockChatService) MaxContentLength() int {
	return 5000
}

// MockBrokerageService mocks handler.BrokerageService
type MockBrokerageService struct {
	mock.Mock
}

func (m *MockBrokerageService) InitiateOAuth(ctx context.Context, ownerID string) (*service.OAuthInitiation, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.OAuthInitiation), args.Error(1)
}

func (m *MockBrokerageService) HandleCallback(ctx context.Context, in service.CallbackInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *MockBrokerageService) Status(ctx context.Context, ownerID string) (*service.StatusReport, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StatusReport), args.Error(1)
}

func (m *MockBrokerageService) FetchBalance(ctx context.Context, ownerID string, force bool) (*service.BalanceResult, error) {
	args := m.Called(ctx, ownerID, force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BalanceResult), args.Error(1)
}

func (m *MockBrokerageService) Disconnect(ctx context.Context, ownerID string) (bool, error) {
	args := m.Called(ctx, ownerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBrokerageService) Passthrough(ctx context.Context, ownerID, resource string) (json.RawMessage, error) {
	args := m.Called(ctx, ownerID, resource)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

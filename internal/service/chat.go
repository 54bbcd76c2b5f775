package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/finance-chat/internal/agent"
	"github.com/Rrens/finance-chat/internal/domain"
	"github.com/Rrens/finance-chat/internal/llm"
	"github.com/Rrens/finance-chat/internal/logging"
)

const (
	defaultMaxContentLength = 5000
	defaultHistoryLimit     = 100
	brokerageConnector      = "ZERODHA"
	authProviderGoogle      = "google"
	disconnectedDetail      = "client disconnected"
	agentFailureMessage     = "Failed to generate response"
	agentTimeoutMessage     = "Response timed out"
)

// Classifier routes a message to an agent
type Classifier interface {
	Classify(ctx context.Context, content string) *domain.ClassificationResult
}

// FinanceAgent streams finance answers
type FinanceAgent interface {
	Stream(ctx context.Context, req agent.StreamRequest) (llm.Stream, error)
}

// GeneralAgent answers everything else in one shot
type GeneralAgent interface {
	Answer(ctx context.Context, question string) *agent.GeneralAnswer
}

// SendInput is a chat message submitted by the frontend
type SendInput struct {
	SessionID          string
	Content            string
	UserID             string
	DeviceID           string
	SelectedConnectors []string
}

// SendResult tells the client where to read the answer from
type SendResult struct {
	MessageID uuid.UUID        `json:"messageId"`
	Status    string           `json:"status"`
	AgentType domain.AgentType `json:"agentType"`
	StreamURL string           `json:"streamUrl"`
}

// AuthRequired is returned instead of a SendResult when an anonymous
// session has used its free message
type AuthRequired struct {
	Type     string `json:"type"`
	Reason   string `json:"reason"`
	Provider string `json:"provider"`
}

// SendOutcome holds exactly one of Result or AuthRequired
type SendOutcome struct {
	Result       *SendResult
	AuthRequired *AuthRequired
}

// StreamInput carries everything the stream endpoint receives in its URL
type StreamInput struct {
	SessionID    uuid.UUID
	MessageID    uuid.UUID
	AgentType    domain.AgentType
	Query        string
	DeviceID     string
	HasBrokerage bool
}

// Emitter writes one frame to the client
type Emitter func(chunk domain.StreamChunk) error

// ChatService handles the send and stream halves of a chat turn
type ChatService struct {
	sessionRepo      domain.SessionRepository
	messageRepo      domain.MessageRepository
	metricsRepo      domain.MetricsRepository
	classifier       Classifier
	finance          FinanceAgent
	general          GeneralAgent
	maxContentLength int
	now              func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(
	sessionRepo domain.SessionRepository,
	messageRepo domain.MessageRepository,
	metricsRepo domain.MetricsRepository,
	classifier Classifier,
	finance FinanceAgent,
	general GeneralAgent,
	maxContentLength int,
) *ChatService {
	if maxContentLength <= 0 {
		maxContentLength = defaultMaxContentLength
	}
	return &ChatService{
		sessionRepo:      sessionRepo,
		messageRepo:      messageRepo,
		metricsRepo:      metricsRepo,
		classifier:       classifier,
		finance:          finance,
		general:          general,
		maxContentLength: maxContentLength,
		now:              time.Now,
	}
}

// MaxContentLength returns the longest accepted message in characters
func (s *ChatService) MaxContentLength() int {
	return s.maxContentLength
}

// Send persists the user message, classifies it and returns the stream URL
func (s *ChatService) Send(ctx context.Context, in SendInput) (*SendOutcome, error) {
	sessionID, err := uuid.Parse(in.SessionID)
	if err != nil {
		return nil, domain.ErrInvalidSessionID
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, domain.ErrEmptyContent
	}
	if utf8.RuneCountInString(in.Content) > s.maxContentLength {
		return nil, domain.ErrContentTooLong
	}

	userID := in.UserID
	if userID == "" {
		userID = domain.AnonymousUserID
	}

	if userID == domain.AnonymousUserID {
		count, err := s.messageRepo.CountUserMessages(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to count messages: %w", err)
		}
		if count >= 1 {
			log.Info().Str("session_id", sessionID.String()).Msg("anonymous message limit reached")
			return &SendOutcome{AuthRequired: &AuthRequired{
				Type:     "AUTH_REQUIRED",
				Reason:   "SECOND_MESSAGE",
				Provider: authProviderGoogle,
			}}, nil
		}
	}

	now := s.now()
	if err := s.sessionRepo.Touch(ctx, sessionID, userID, now); err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}

	userMsg := &domain.ChatMessage{
		ID:        uuid.New(),
		SessionID: sessionID,
		Sender:    domain.SenderUser,
		Content:   in.Content,
		Status:    domain.StatusComplete,
		Timestamp: now,
	}
	if _, err := s.messageRepo.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	classification := s.classifier.Classify(ctx, in.Content)
	agentMsgID := uuid.New()

	return &SendOutcome{Result: &SendResult{
		MessageID: agentMsgID,
		Status:    string(domain.StatusPending),
		AgentType: classification.AgentType,
		StreamURL: buildStreamURL(sessionID, agentMsgID, classification.AgentType, in),
	}}, nil
}

func buildStreamURL(sessionID, messageID uuid.UUID, agentType domain.AgentType, in SendInput) string {
	q := url.Values{}
	q.Set("agentType", string(agentType))
	q.Set("query", in.Content)
	if in.DeviceID != "" {
		q.Set("deviceId", in.DeviceID)
	}
	q.Set("hasZerodha", strconv.FormatBool(hasConnector(in.SelectedConnectors, brokerageConnector)))
	return fmt.Sprintf("/chat/stream/%s/%s?%s", sessionID, messageID, q.Encode())
}

func hasConnector(connectors []string, name string) bool {
	for _, c := range connectors {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// Stream runs the selected agent and relays its output through emit. The
// terminal COMPLETE or ERROR frame is always the last one written.
func (s *ChatService) Stream(ctx context.Context, in StreamInput, emit Emitter) error {
	start := s.now()
	// persistence must survive a client that has already gone away
	store := context.WithoutCancel(ctx)

	session, err := s.sessionRepo.Get(ctx, in.SessionID)
	if err != nil {
		_ = emit(domain.ErrorChunk(domain.CodeAgentError, agentFailureMessage, true))
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		_ = emit(domain.ErrorChunk(domain.CodeInvalidRequest, "Session not found", false))
		return domain.ErrSessionNotFound
	}

	agentType := in.AgentType
	msg := &domain.ChatMessage{
		ID:        in.MessageID,
		SessionID: in.SessionID,
		Sender:    domain.SenderAgent,
		AgentType: &agentType,
		Status:    domain.StatusStreaming,
		Timestamp: start,
	}
	inserted, err := s.messageRepo.Create(ctx, msg)
	if err != nil {
		_ = emit(domain.ErrorChunk(domain.CodeAgentError, agentFailureMessage, true))
		return fmt.Errorf("failed to create agent message: %w", err)
	}
	if !inserted {
		inserted, err = s.retryFailed(ctx, msg)
		if err != nil {
			_ = emit(domain.ErrorChunk(domain.CodeAgentError, agentFailureMessage, true))
			return err
		}
		if !inserted {
			_ = emit(domain.ErrorChunk(domain.CodeInvalidRequest, "Stream already consumed for this message", false))
			return domain.ErrStreamConsumed
		}
	}

	sid, mid := in.SessionID.String(), msg.ID.String()
	logging.StreamingEvent(sid, mid, "start", 0)

	var content strings.Builder
	chunks, genErr := s.generate(ctx, in, session, &content, emit)
	if genErr == nil {
		if err := emit(domain.CompleteChunk()); err != nil {
			genErr = &emitError{err: err}
		}
	}

	latency := s.now().Sub(start).Milliseconds()

	if genErr == nil {
		if _, err := s.messageRepo.Finish(store, msg.ID, content.String(), domain.StatusComplete, latency, nil); err != nil {
			log.Error().Err(err).Str("message_id", mid).Msg("failed to complete agent message")
		}
		s.recordMetric(store, agentType, latency, true, "", session.UserID)
		logging.StreamingEvent(sid, mid, "complete", chunks)
		return nil
	}

	code := domain.CodeAgentError
	details := genErr.Error()
	var ee *emitError
	switch {
	case errors.As(genErr, &ee) || ctx.Err() != nil:
		code = domain.CodeClientDisconnected
		details = disconnectedDetail
	case errors.Is(genErr, context.DeadlineExceeded):
		code = domain.CodeAgentTimeout
		_ = emit(domain.ErrorChunk(domain.CodeAgentTimeout, agentTimeoutMessage, true))
	default:
		_ = emit(domain.ErrorChunk(domain.CodeAgentError, agentFailureMessage, true))
	}

	if _, err := s.messageRepo.Finish(store, msg.ID, content.String(), domain.StatusError, latency, &details); err != nil {
		log.Error().Err(err).Str("message_id", mid).Msg("failed to fail agent message")
	}
	s.recordMetric(store, agentType, latency, false, string(code), session.UserID)
	logging.StreamingEvent(sid, mid, "error", chunks)

	return genErr
}

// retryFailed gives a reopened stream whose earlier attempt ended in ERROR a
// fresh AGENT row. Completed and in-flight messages are never answered twice.
func (s *ChatService) retryFailed(ctx context.Context, msg *domain.ChatMessage) (bool, error) {
	existing, err := s.messageRepo.Get(ctx, msg.ID)
	if err != nil {
		return false, fmt.Errorf("failed to get agent message: %w", err)
	}
	if existing == nil || existing.Status != domain.StatusError || existing.SessionID != msg.SessionID {
		return false, nil
	}

	log.Info().
		Str("session_id", msg.SessionID.String()).
		Str("failed_message_id", msg.ID.String()).
		Msg("retrying failed stream")

	msg.ID = uuid.New()
	inserted, err := s.messageRepo.Create(ctx, msg)
	if err != nil {
		return false, fmt.Errorf("failed to create agent message: %w", err)
	}
	return inserted, nil
}

// emitError marks a failure to write to the client
type emitError struct {
	err error
}

func (e *emitError) Error() string { return "failed to write frame: " + e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }

func (s *ChatService) generate(ctx context.Context, in StreamInput, session *domain.ChatSession, content *strings.Builder, emit Emitter) (int, error) {
	if in.AgentType == domain.AgentGeneral {
		answer := s.general.Answer(ctx, in.Query)
		content.WriteString(answer.Answer)
		if err := emit(domain.DeltaChunk(answer.Answer)); err != nil {
			return 0, &emitError{err: err}
		}
		return 1, nil
	}

	stream, err := s.finance.Stream(ctx, agent.StreamRequest{
		Question:     in.Query,
		HasBrokerage: in.HasBrokerage,
		OwnerID:      brokerageOwner(in.DeviceID, session.UserID),
	})
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	chunks := 0
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}

		content.WriteString(chunk)
		if err := emit(domain.DeltaChunk(chunk)); err != nil {
			return chunks, &emitError{err: err}
		}
		chunks++
	}
}

// brokerageOwner keys the brokerage connection by device when known
func brokerageOwner(deviceID, userID string) string {
	if deviceID != "" {
		return deviceID
	}
	if userID == domain.AnonymousUserID {
		return ""
	}
	return userID
}

func (s *ChatService) recordMetric(ctx context.Context, agentType domain.AgentType, latencyMs int64, success bool, errorCode, userID string) {
	m := &domain.AgentMetrics{
		ID:        uuid.New(),
		AgentType: agentType,
		Timestamp: s.now(),
		LatencyMs: latencyMs,
		Success:   success,
		UserID:    userID,
	}
	if errorCode != "" {
		m.ErrorCode = &errorCode
	}

	if err := s.metricsRepo.Record(ctx, m); err != nil {
		log.Error().Err(err).Str("agent_type", string(agentType)).Msg("failed to record agent metrics")
	}
	logging.AgentCall(string(agentType), latencyMs, success, errorCode, userID)
}

// Messages returns the session history in chronological order
func (s *ChatService) Messages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, domain.ErrInvalidSessionID
	}
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}

	session, err := s.sessionRepo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}

	messages, err := s.messageRepo.ListBySession(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

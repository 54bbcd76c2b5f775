package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/finance-chat/internal/api/middleware"
	"github.com/Rrens/finance-chat/internal/api/response"
	"github.com/Rrens/finance-chat/internal/domain"
	"github.com/Rrens/finance-chat/internal/service"
)

// ChatService is the chat gateway used by ChatHandler
type ChatService interface {
	Send(ctx context.Context, in service.SendInput) (*service.SendOutcome, error)
	Stream(ctx context.Context, in service.StreamInput, emit service.Emitter) error
	Messages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
	MaxContentLength() int
}

// ChatHandler handles chat endpoints
type ChatHandler struct {
	chatService ChatService
	keepAlive   time.Duration
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService ChatService, keepAlive time.Duration) *ChatHandler {
	return &ChatHandler{chatService: chatService, keepAlive: keepAlive}
}

type sendRequest struct {
	SessionID          string   `json:"sessionId" validate:"required,uuid_rfc4122"`
	Content            string   `json:"content" validate:"notblank"`
	UserID             string   `json:"userId"`
	DeviceID           string   `json:"deviceId"`
	SelectedConnectors []string `json:"selectedConnectors"`
}

// Send accepts a message and returns where to stream the answer from
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	userID := req.UserID
	if authUserID, ok := middleware.GetUserID(r.Context()); ok {
		userID = authUserID
	}

	out, err := h.chatService.Send(r.Context(), service.SendInput{
		SessionID:          req.SessionID,
		Content:            req.Content,
		UserID:             userID,
		DeviceID:           req.DeviceID,
		SelectedConnectors: req.SelectedConnectors,
	})
	if err != nil {
		if !isClientError(err) {
			log.Error().Err(err).Str("session_id", req.SessionID).Msg("chat send failed")
		}
		domainError(w, err, h.chatService.MaxContentLength())
		return
	}

	if out.AuthRequired != nil {
		response.Raw(w, http.StatusOK, out.AuthRequired)
		return
	}
	response.Raw(w, http.StatusOK, out.Result)
}

type streamRequest struct {
	SessionID string `validate:"required,uuid_rfc4122"`
	MessageID string `validate:"required,uuid_rfc4122"`
	AgentType string `validate:"required,oneof=FINANCE GENERAL"`
	Query     string `validate:"notblank"`
	DeviceID  string
}

// Stream relays the agent answer as Server-Sent Events
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := streamRequest{
		SessionID: chi.URLParam(r, "sessionID"),
		MessageID: chi.URLParam(r, "messageID"),
		AgentType: q.Get("agentType"),
		Query:     q.Get("query"),
		DeviceID:  q.Get("deviceId"),
	}

	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}
	hasBrokerage, _ := strconv.ParseBool(q.Get("hasZerodha"))

	in := service.StreamInput{
		SessionID:    uuid.MustParse(req.SessionID),
		MessageID:    uuid.MustParse(req.MessageID),
		AgentType:    domain.AgentType(req.AgentType),
		Query:        req.Query,
		DeviceID:     req.DeviceID,
		HasBrokerage: hasBrokerage,
	}

	sse := newSSEWriter(w)

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sse.keepAlive(ctx, h.keepAlive)
	}()

	err := h.chatService.Stream(r.Context(), in, sse.Send)

	cancel()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).
			Str("session_id", req.SessionID).
			Str("message_id", req.MessageID).
			Msg("stream ended with error")
	}
}

// Messages returns the chat history of a session
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.chatService.Messages(r.Context(), chi.URLParam(r, "sessionID"), limit)
	if err != nil {
		if !isClientError(err) {
			log.Error().Err(err).Msg("failed to list messages")
		}
		domainError(w, err, h.chatService.MaxContentLength())
		return
	}

	response.OK(w, map[string]any{
		"messages": messages,
	})
}

func isClientError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidSessionID,
		domain.ErrEmptyContent,
		domain.ErrContentTooLong,
		domain.ErrSessionNotFound,
		domain.ErrOwnerRequired,
		domain.ErrNotConnected,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

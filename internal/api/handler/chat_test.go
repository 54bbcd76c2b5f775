package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/finance-chat/internal/api/handler"
	"github.com/Rrens/finance-chat/internal/api/middleware"
	"github.com/Rrens/finance-chat/internal/domain"
	"github.com/Rrens/finance-chat/internal/security"
	"github.com/Rrens/finance-chat/internal/service"
)

func newChatRouter(svc *MockChatService, keepAlive time.Duration) http.Handler {
	h := handler.NewChatHandler(svc, keepAlive)
	auth := middleware.NewAuthMiddleware(security.NewJWTManager("test-secret", time.Hour))

	r := chi.NewRouter()
	r.Use(auth.OptionalAuth)
	r.Post("/chat/send", h.Send)
	r.Get("/chat/stream/{sessionID}/{messageID}", h.Stream)
	r.Get("/chat/sessions/{sessionID}/messages", h.Messages)
	return r
}

func postJSON(t *testing.T, router http.Handler, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	return body.Error
}

func TestChatHandler_Send_Validation(t *testing.T) {
	svc := new(MockChatService)
	router := newChatRouter(svc, 0)

	rec := postJSON(t, router, "/chat/send", `{"sessionId":"nope","content":"hi"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid session ID format", errorMessage(t, rec))

	rec = postJSON(t, router, "/chat/send", `{"sessionId":"`+uuid.NewString()+`","content":"   "}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Message content cannot be empty", errorMessage(t, rec))

	rec = postJSON(t, router, "/chat/send", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestChatHandler_Send_TooLong(t *testing.T) {
	svc := new(MockChatService)
	router := newChatRouter(svc, 0)
	svc.On("Send", mock.Anything, mock.Anything).Return(nil, domain.ErrContentTooLong)

	rec := postJSON(t, router, "/chat/send", `{"sessionId":"`+uuid.NewString()+`","content":"`+strings.Repeat("a", 5001)+`"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Message too long (max 5000 characters)", errorMessage(t, rec))
}

func TestChatHandler_Send_InternalError(t *testing.T) {
	svc := new(MockChatService)
	router := newChatRouter(svc, 0)
	svc.On("Send", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	rec := postJSON(t, router, "/chat/send", `{"sessionId":"`+uuid.NewString()+`","content":"hi"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", errorMessage(t, rec))
}

func TestChatHandler_Send(t *testing.T) {
	svc := new(MockChatService)
	router := newChatRouter(svc, 0)
	sessionID := "a0000000-0000-4000-8000-000000000001"
	messageID := uuid.New()

	svc.On("Send", mock.Anything, service.SendInput{
		SessionID:          sessionID,
		Content:            "What is my portfolio P&L?",
		UserID:             "u1",
		DeviceID:           "device-1",
		SelectedConnectors: []string{"ZERODHA"},
	}).Return(&service.SendOutcome{Result: &service.SendResult{
		MessageID: messageID,
		Status:    "PENDING",
		AgentType: domain.AgentFinance,
		StreamURL: "/chat/stream/" + sessionID + "/" + messageID.String() + "?agentType=FINANCE",
	}}, nil)

	rec := postJSON(t, router, "/chat/send",
		`{"sessionId":"`+sessionID+`","content":"What is my portfolio P&L?","userId":"u1","deviceId":"device-1","selectedConnectors":["ZERODHA"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, messageID.String(), body["messageId"])
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, "FINANCE", body["agentType"])
	assert.Contains(t, body["streamUrl"], "/chat/stream/"+sessionID+"/")
}

func TestChatHandler_Send_AuthRequired(t *testing.T) {
	svc := new(MockChatService)
	router := newChatRouter(svc, 0)

	svc.On("Send", mock.Anything, mock.Anything).Return(&service.SendOutcome{AuthRequired: &service.AuthRequired{
		Type:     "AUTH_REQUIRED",
		Reason:   "SECOND_MESSAGE",
		Provider: "google",
	}}, nil)

	rec := postJSON(t, router, "/chat/send", `{"sessionId":"`+uuid.NewString()+`","content":"again","userId":"anonymous"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"type":"AUTH_REQUIRED","reason":"SECOND_MESSAGE","provider":"google"}`, rec.Body.String())
}

func TestChatHandler_Send_TokenOverridesBodyUser(t *testing.T) {
	svc := new(MockChatService)
	router := newChatRouter(svc, 0)
	token, err := security.NewJWTManager("test-secret", time.Hour).GenerateAccessToken("google-123", "a@b.c")
	require.NoError(t, err)

	svc.On("Send", mock.Anything, mock.MatchedBy(func(in service.SendInput) bool {
		return in.UserID == "google-123"
	})).Return(&service.SendOutcome{Result: &service.SendResult{AgentType: domain.AgentGeneral}}, nil)

	rec := postJSON(t, router, "/chat/send", `{"sessionId":"`+uuid.NewString()+`","content":"hi","userId":"anonymous"}`,
		http.Header{"Authorization": []string{"Bearer " + token}})
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestChatHandler_UppercaseIDs(t *testing.T) {
	svc := new(MockChatService)
	router := newChatRouter(svc, 0)
	const sessionID = "6BA7B810-9DAD-11D1-80B4-00C04FD430C8"
	const messageID = "A0000000-0000-4000-8000-0000000000FF"

	svc.On("Send", mock.Anything, service.SendInput{SessionID: sessionID, Content: "hi", UserID: "u1"}).
		Return(&service.SendOutcome{Result: &service.SendResult{
			MessageID: uuid.MustParse(messageID),
			Status:    "COMPLETE",
			AgentType: domain.AgentGeneral,
		}}, nil)
	svc.On("Stream", mock.Anything, service.StreamInput{
		SessionID: uuid.MustParse(sessionID),
		MessageID: uuid.MustParse(messageID),
		AgentType: domain.AgentGeneral,
		Query:     "hi",
	}, mock.Anything).Return(nil)

	rec := postJSON(t, router, "/chat/send", `{"sessionId":"`+sessionID+`","content":"hi","userId":"u1"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/chat/stream/"+sessionID+"/"+messageID+"?agentType=GENERAL&query=hi", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.AssertExpectations(t)
}

func TestChatHandler_Stream(t *testing.T) {
	svc := new(MockChatService)
	router := newChatRouter(svc, 0)
	sessionID, messageID := uuid.New(), uuid.New()

	svc.On("Stream", mock.Anything, service.StreamInput{
		SessionID:    sessionID,
		MessageID:    messageID,
		AgentType:    domain.AgentFinance,
		Query:        "What is my portfolio P&L?",
		DeviceID:     "device-1",
		HasBrokerage: true,
	}, mock.Anything).Run(func(args mock.Arguments) {
		emit := args.Get(2).(service.Emitter)
		_ = emit(domain.DeltaChunk("Your "))
		_ = emit(domain.DeltaChunk("total"))
		_ = emit(domain.CompleteChunk())
	}).Return(nil)

	path := "/chat/stream/" + sessionID.String() + "/" + messageID.String() +
		"?agentType=FINANCE&query=What+is+my+portfolio+P%26L%3F&deviceId=device-1&hasZerodha=true"
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	assert.Equal(t,
		`data: {"type":"DELTA","content":"Your "}`+"\n\n"+
			`data: {"type":"DELTA","content":"total"}`+"\n\n"+
			`data: {"type":"COMPLETE"}`+"\n\n",
		rec.Body.String())
	svc.AssertExpectations(t)
}

func TestChatHandler_Stream_KeepAlive(t *testing.T) {
	svc := new(MockChatService)
	router := newChatRouter(svc, 10*time.Millisecond)
	sessionID, messageID := uuid.New(), uuid.New()

	svc.On("Stream", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		time.Sleep(60 * time.Millisecond)
		_ = args.Get(2).(service.Emitter)(domain.CompleteChunk())
	}).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/chat/stream/"+sessionID.String()+"/"+messageID.String()+"?agentType=GENERAL&query=hi", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, ": keepalive\n\n")
	assert.True(t, strings.HasSuffix(body, `data: {"type":"COMPLETE"}`+"\n\n"))
}

func TestChatHandler_Stream_Validation(t *testing.T) {
	svc := new(MockChatService)
	router := newChatRouter(svc, 0)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"bad session", "/chat/stream/nope/" + uuid.NewString() + "?agentType=FINANCE&query=q", "Invalid session ID format"},
		{"bad message", "/chat/stream/" + uuid.NewString() + "/nope?agentType=FINANCE&query=q", "Invalid message ID format"},
		{"bad agent", "/chat/stream/" + uuid.NewString() + "/" + uuid.NewString() + "?agentType=finance&query=q", "Invalid agent type"},
		{"empty query", "/chat/stream/" + uuid.NewString() + "/" + uuid.NewString() + "?agentType=FINANCE", "Query cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, errorMessage(t, rec))
		})
	}
	svc.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatHandler_Messages(t *testing.T) {
	svc := new(MockChatService)
	router := newChatRouter(svc, 0)
	sessionID := uuid.New()

	svc.On("Messages", mock.Anything, sessionID.String(), 20).Return([]domain.ChatMessage{
		{ID: uuid.New(), SessionID: sessionID, Sender: domain.SenderUser, Content: "hi", Status: domain.StatusComplete},
	}, nil)
	svc.On("Messages", mock.Anything, "missing", 0).Return(nil, domain.ErrInvalidSessionID)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/sessions/"+sessionID.String()+"/messages?limit=20", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Messages []domain.ChatMessage `json:"messages"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	require.Len(t, body.Data.Messages, 1)
	assert.Equal(t, "hi", body.Data.Messages[0].Content)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/sessions/missing/messages", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/Rrens/finance-chat/internal/api/middleware"
	"github.com/Rrens/finance-chat/internal/api/response"
	"github.com/Rrens/finance-chat/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// fieldMessages maps "Field.tag" to a user-facing message
var fieldMessages = map[string]string{
	"SessionID.required":        "Invalid session ID format",
	"SessionID.uuid_rfc4122":    "Invalid session ID format",
	"MessageID.required":        "Invalid message ID format",
	"MessageID.uuid_rfc4122":    "Invalid message ID format",
	"Content.notblank":          "Message content cannot be empty",
	"Query.notblank":            "Query cannot be empty",
	"AgentType.required":        "Invalid agent type",
	"AgentType.oneof":           "Invalid agent type",
	"DeviceID.required_without": "userId or deviceId is required",
}

// validationMessage returns the first failure as a readable message
func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err.Error()
	}

	e := validationErrors[0]
	if msg, ok := fieldMessages[e.Field()+"."+e.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("%s failed on %s", e.Field(), e.Tag())
}

// ownerRequest identifies the brokerage connection owner
type ownerRequest struct {
	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId" validate:"required_without=UserID"`
}

// ownerID prefers the device, then the authenticated user, then the body
func ownerID(r *http.Request, req ownerRequest) string {
	if req.DeviceID != "" {
		return req.DeviceID
	}
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		return userID
	}
	return req.UserID
}

// domainError maps the curated sentinel errors to a status; anything else
// collapses to a generic 500
func domainError(w http.ResponseWriter, err error, maxContentLength int) {
	switch {
	case errors.Is(err, domain.ErrInvalidSessionID):
		response.BadRequest(w, "Invalid session ID format")
	case errors.Is(err, domain.ErrEmptyContent):
		response.BadRequest(w, "Message content cannot be empty")
	case errors.Is(err, domain.ErrContentTooLong):
		response.BadRequest(w, fmt.Sprintf("Message too long (max %d characters)", maxContentLength))
	case errors.Is(err, domain.ErrInvalidAgentType),
		errors.Is(err, domain.ErrOwnerRequired):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		response.NotFound(w, "Session not found")
	case errors.Is(err, domain.ErrNotConnected):
		response.Unauthorized(w, "Zerodha account not connected")
	case errors.Is(err, domain.ErrBrokerNotConfigured):
		response.Error(w, http.StatusServiceUnavailable, "Zerodha integration not configured")
	default:
		response.InternalError(w, "Internal server error")
	}
}

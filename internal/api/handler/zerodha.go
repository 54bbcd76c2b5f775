package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/finance-chat/internal/api/response"
	"github.com/Rrens/finance-chat/internal/domain"
	"github.com/Rrens/finance-chat/internal/service"
)

// BrokerageService is the Zerodha connector used by ZerodhaHandler
type BrokerageService interface {
	InitiateOAuth(ctx context.Context, ownerID string) (*service.OAuthInitiation, error)
	HandleCallback(ctx context.Context, in service.CallbackInput) (string, error)
	Status(ctx context.Context, ownerID string) (*service.StatusReport, error)
	FetchBalance(ctx context.Context, ownerID string, force bool) (*service.BalanceResult, error)
	Disconnect(ctx context.Context, ownerID string) (bool, error)
	Passthrough(ctx context.Context, ownerID, resource string) (json.RawMessage, error)
}

// ZerodhaHandler handles the brokerage connector endpoints
type ZerodhaHandler struct {
	brokerageService BrokerageService
}

// NewZerodhaHandler creates a new Zerodha handler
func NewZerodhaHandler(brokerageService BrokerageService) *ZerodhaHandler {
	return &ZerodhaHandler{brokerageService: brokerageService}
}

// decodeOwner reads and validates the owner of a brokerage request
func decodeOwner(w http.ResponseWriter, r *http.Request, dst any, owner *ownerRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}
	if err := validate.Struct(owner); err != nil {
		response.BadRequest(w, validationMessage(err))
		return false
	}
	return true
}

// InitiateOAuth starts the broker login
func (h *ZerodhaHandler) InitiateOAuth(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if !decodeOwner(w, r, &req, &req) {
		return
	}

	out, err := h.brokerageService.InitiateOAuth(r.Context(), ownerID(r, req))
	if err != nil {
		log.Error().Err(err).Msg("failed to initiate zerodha oauth")
		domainError(w, err, 0)
		return
	}

	response.Raw(w, http.StatusOK, out)
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 48px;">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
<p>Close this window and click Connect again.</p>
</body>
</html>
`))

type callbackFailure struct {
	Title   string
	Message string
}

var callbackFailures = map[error]callbackFailure{
	domain.ErrStateNotFound: {"Invalid Login Request", "This login link is not recognised. It may have been tampered with."},
	domain.ErrStateUsed:     {"Login Link Already Used", "This login link has already been used and cannot be used again."},
	domain.ErrStateExpired:  {"Login Link Expired", "This login link is older than 15 minutes."},
}

// OAuthCallback is the terminal hop of the broker login; it always answers
// with a redirect or an HTML page
func (h *ZerodhaHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirect, err := h.brokerageService.HandleCallback(r.Context(), service.CallbackInput{
		RequestToken: q.Get("request_token"),
		Status:       q.Get("status"),
		State:        q.Get("state"),
	})
	if err != nil {
		failure, ok := callbackFailures[unwrapSentinel(err)]
		if !ok {
			failure = callbackFailure{"Connection Failed", "Something went wrong while connecting your account."}
		}
		var page bytes.Buffer
		if err := callbackPage.Execute(&page, failure); err != nil {
			response.InternalError(w, "Internal server error")
			return
		}
		response.HTML(w, http.StatusBadRequest, page.Bytes())
		return
	}

	http.Redirect(w, r, redirect, http.StatusFound)
}

func unwrapSentinel(err error) error {
	for sentinel := range callbackFailures {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return err
}

// Status reports the connection state
func (h *ZerodhaHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if !decodeOwner(w, r, &req, &req) {
		return
	}

	report, err := h.brokerageService.Status(r.Context(), ownerID(r, req))
	if err != nil {
		log.Error().Err(err).Msg("failed to get zerodha status")
		domainError(w, err, 0)
		return
	}

	response.Raw(w, http.StatusOK, report)
}

// Disconnect revokes the connection
func (h *ZerodhaHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if !decodeOwner(w, r, &req, &req) {
		return
	}

	if _, err := h.brokerageService.Disconnect(r.Context(), ownerID(r, req)); err != nil {
		log.Error().Err(err).Msg("failed to disconnect zerodha")
		domainError(w, err, 0)
		return
	}

	response.Raw(w, http.StatusOK, map[string]bool{"success": true})
}

type balanceRequest struct {
	ownerRequest
	Force *bool `json:"force"`
}

type balanceResponse struct {
	Success   bool            `json:"success"`
	Balance   *domain.Balance `json:"balance,omitempty"`
	FromCache bool            `json:"fromCache"`
	Error     string          `json:"error,omitempty"`
}

// RefreshBalance fetches the balance; force defaults to false
func (h *ZerodhaHandler) RefreshBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if !decodeOwner(w, r, &req, &req.ownerRequest) {
		return
	}
	force := req.Force != nil && *req.Force

	result, err := h.brokerageService.FetchBalance(r.Context(), ownerID(r, req.ownerRequest), force)
	switch {
	case err == nil:
		response.Raw(w, http.StatusOK, balanceResponse{Success: true, Balance: result.Balance, FromCache: result.FromCache})
	case errors.Is(err, domain.ErrBalanceUnavailable):
		response.Raw(w, http.StatusServiceUnavailable, balanceResponse{Error: "Balance currently unavailable"})
	case errors.Is(err, domain.ErrNotConnected):
		response.Raw(w, http.StatusUnauthorized, balanceResponse{Error: "Zerodha account not connected"})
	case errors.Is(err, domain.ErrOwnerRequired):
		response.Raw(w, http.StatusBadRequest, balanceResponse{Error: err.Error()})
	default:
		log.Error().Err(err).Msg("failed to refresh zerodha balance")
		response.Raw(w, http.StatusInternalServerError, balanceResponse{Error: "Internal server error"})
	}
}

type passthroughResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Passthrough returns a handler that proxies one read-only Kite resource
func (h *ZerodhaHandler) Passthrough(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ownerRequest
		if !decodeOwner(w, r, &req, &req) {
			return
		}

		data, err := h.brokerageService.Passthrough(r.Context(), ownerID(r, req), resource)
		switch {
		case err == nil:
			response.Raw(w, http.StatusOK, passthroughResponse{Success: true, Data: data})
		case errors.Is(err, domain.ErrNotConnected):
			response.Raw(w, http.StatusOK, passthroughResponse{Error: "Not authenticated"})
		default:
			log.Error().Err(err).Str("resource", resource).Msg("zerodha passthrough failed")
			response.Raw(w, http.StatusOK, passthroughResponse{Error: "Failed to fetch " + resource})
		}
	}
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/finance-chat/internal/agent"
	"github.com/Rrens/finance-chat/internal/api/response"
)

// FinanceAnalyzer answers a finance question in a single call
type FinanceAnalyzer interface {
	Analyze(ctx context.Context, question string) (*agent.FinanceAnswer, error)
}

// AgentHandler exposes the agents directly, bypassing classification
type AgentHandler struct {
	finance FinanceAnalyzer
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(finance FinanceAnalyzer) *AgentHandler {
	return &AgentHandler{finance: finance}
}

type analyzeRequest struct {
	Query string `json:"query" validate:"notblank"`
}

// AnalyzeFinance runs the finance agent without streaming or persistence
func (h *AgentHandler) AnalyzeFinance(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	answer, err := h.finance.Analyze(r.Context(), req.Query)
	if err != nil {
		if !errors.Is(err, agent.ErrFinanceUnavailable) {
			log.Error().Err(err).Msg("finance analysis failed")
		}
		response.Error(w, http.StatusServiceUnavailable, "Finance agent unavailable")
		return
	}

	response.Raw(w, http.StatusOK, answer)
}

package agent

import (
	"context"
	"strings"
	"time"

	"github.com/Rrens/finance-chat/internal/llm"
	"github.com/Rrens/finance-chat/internal/logging"
)

const (
	generalMaxTokens   = 100
	generalTemperature = 0.7
	generalTimeout     = 2 * time.Second

	// GeneralFallback is returned whenever the provider call fails
	GeneralFallback = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."
	generalEmpty    = "I'm here to help! How can I assist you?"
)

// GeneralAnswer is the single-shot reply of the general agent
type GeneralAnswer struct {
	Answer           string
	ProcessingTimeMs int64
	// Fallback is set when the canned apology replaced a failed call
	Fallback bool
}

// General answers greetings, help requests and small talk
type General struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
}

// NewGeneral creates the general agent
func NewGeneral(provider llm.Provider, model string, timeout time.Duration) *General {
	if timeout <= 0 {
		timeout = generalTimeout
	}
	return &General{provider: provider, model: model, timeout: timeout}
}

// Answer always produces a user-visible reply
func (g *General) Answer(ctx context.Context, question string) *GeneralAnswer {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := llm.Prompt(generalSystemPrompt, question)
	req.Model = g.model
	req.MaxTokens = generalMaxTokens
	req.Temperature = generalTemperature

	resp, err := g.provider.Complete(ctx, req)
	if err != nil {
		logging.APIError(err, "general_agent", question)
		return &GeneralAnswer{
			Answer:           GeneralFallback,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Fallback:         true,
		}
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		answer = generalEmpty
	}

	return &GeneralAnswer{
		Answer:           answer,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
}

package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/finance-chat/internal/domain"
	"github.com/Rrens/finance-chat/internal/llm"
	"github.com/Rrens/finance-chat/internal/logging"
)

const (
	defaultTimeout  = 500 * time.Millisecond
	llmTemperature  = 0.3
	llmMaxTokens    = 100
	llmConfidence   = 0.7
	failConfidence  = 0.5
	failedReasoning = "Classification failed, defaulting to general agent"
)

const systemPrompt = `You are a message classifier for a financial chat application.
Your job is to determine if a user message is:
1. FINANCE - Questions about portfolio, P&L, risk, stocks, investments, trading, financial analysis
2. GENERAL - Greetings, help requests, general conversation, non-finance topics

Respond in JSON format: {"type": "FINANCE" | "GENERAL", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`

// Cache stores LLM verdicts by message text
type Cache interface {
	Get(ctx context.Context, text string) (*domain.ClassificationResult, error)
	Set(ctx context.Context, text string, result *domain.ClassificationResult) error
}

// Classifier routes a message to the finance or the general agent.
// Keyword heuristics run first; the LLM is consulted only when they are
// inconclusive.
type Classifier struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
	cache    Cache
}

// New creates a classifier. provider and cache may be nil.
func New(provider llm.Provider, model string, timeout time.Duration, cache Cache) *Classifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Classifier{
		provider: provider,
		model:    model,
		timeout:  timeout,
		cache:    cache,
	}
}

// Classify never fails: any error yields GENERAL at confidence 0.5
func (c *Classifier) Classify(ctx context.Context, content string) *domain.ClassificationResult {
	start := time.Now()

	if result := classifyByHeuristics(content); result != nil {
		return finish(result, start, "heuristic")
	}

	if c.cache != nil {
		cached, err := c.cache.Get(ctx, content)
		if err != nil {
			log.Warn().Err(err).Msg("classification cache read failed")
		} else if cached != nil {
			return finish(cached, start, "cache")
		}
	}

	result, err := c.classifyByLLM(ctx, content)
	if err != nil {
		logging.APIError(err, "classification", content)
		return finish(&domain.ClassificationResult{
			AgentType:  domain.AgentGeneral,
			Confidence: failConfidence,
			Reasoning:  failedReasoning,
		}, start, "fallback")
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, content, result); err != nil {
			log.Warn().Err(err).Msg("classification cache write failed")
		}
	}

	return finish(result, start, "llm")
}

func finish(result *domain.ClassificationResult, start time.Time, method string) *domain.ClassificationResult {
	result.LatencyMs = time.Since(start).Milliseconds()
	logging.Classification(string(result.AgentType), result.Confidence, result.Reasoning, result.LatencyMs, method)
	return result
}

type llmVerdict struct {
	Type       string   `json:"type"`
	Confidence *float64 `json:"confidence"`
	Reasoning  *string  `json:"reasoning"`
}

func (c *Classifier) classifyByLLM(ctx context.Context, content string) (*domain.ClassificationResult, error) {
	if c.provider == nil || !c.provider.IsConfigured() {
		return nil, errors.New("no classification provider configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := llm.Prompt(systemPrompt, fmt.Sprintf("Classify this message: %q", content))
	req.Model = c.model
	req.Temperature = llmTemperature
	req.MaxTokens = llmMaxTokens
	req.JSON = true

	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to classify with llm: %w", err)
	}

	var verdict llmVerdict
	if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Content)), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse classification: %w", err)
	}

	result := &domain.ClassificationResult{
		AgentType:  domain.AgentGeneral,
		Confidence: llmConfidence,
		Reasoning:  "LLM classification",
	}
	if verdict.Type == string(domain.AgentFinance) {
		result.AgentType = domain.AgentFinance
	}
	if verdict.Confidence != nil {
		result.Confidence = min(max(*verdict.Confidence, 0), 1)
	}
	if verdict.Reasoning != nil && *verdict.Reasoning != "" {
		result.Reasoning = *verdict.Reasoning
	}
	return result, nil
}

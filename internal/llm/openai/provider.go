package openai

import (
	"context"
	"fmt"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/Rrens/finance-chat/internal/config"
	"github.com/Rrens/finance-chat/internal/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Provider implements llm.Provider for OpenAI
type Provider struct {
	apiKey       string
	defaultModel string
	chatModel    *einoopenai.ChatModel
}

// NewProvider creates a new OpenAI provider. A provider without an API key
// is returned unconfigured.
func NewProvider(ctx context.Context, cfg config.OpenAIConfig) (*Provider, error) {
	p := &Provider{apiKey: cfg.APIKey, defaultModel: cfg.Model}
	if p.defaultModel == "" {
		p.defaultModel = "gpt-4-turbo"
	}
	if cfg.APIKey == "" {
		return p, nil
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	cm, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: baseURL,
		Model:   p.defaultModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create openai chat model: %w", err)
	}
	p.chatModel = cm
	return p, nil
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "openai"
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return []string{
		"gpt-4-turbo",
		"gpt-4",
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-3.5-turbo",
	}
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != "" && p.chatModel != nil
}

// Complete returns the whole answer at once
func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("openai provider is not configured")
	}
	return llm.EinoComplete(ctx, p.chatModel, req, llm.ResolveModel(p, req.Model))
}

// Stream returns the answer incrementally
func (p *Provider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("openai provider is not configured")
	}
	return llm.EinoStream(ctx, p.chatModel, req, llm.ResolveModel(p, req.Model))
}

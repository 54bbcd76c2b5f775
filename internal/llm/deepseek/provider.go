package deepseek

import (
	"context"
	"fmt"

	einodeepseek "github.com/cloudwego/eino-ext/components/model/deepseek"

	"github.com/Rrens/finance-chat/internal/config"
	"github.com/Rrens/finance-chat/internal/llm"
)

const defaultMaxTokens = 2000

// Provider implements llm.Provider for DeepSeek
type Provider struct {
	apiKey       string
	defaultModel string
	chatModel    *einodeepseek.ChatModel
}

// NewProvider creates a new DeepSeek provider. A provider without an API
// key is returned unconfigured.
func NewProvider(ctx context.Context, cfg config.DeepSeekConfig) (*Provider, error) {
	p := &Provider{apiKey: cfg.APIKey, defaultModel: cfg.Model}
	if p.defaultModel == "" {
		p.defaultModel = "deepseek-chat"
	}
	if cfg.APIKey == "" {
		return p, nil
	}

	cm, err := einodeepseek.NewChatModel(ctx, &einodeepseek.ChatModelConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     p.defaultModel,
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create deepseek chat model: %w", err)
	}
	p.chatModel = cm
	return p, nil
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "deepseek"
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return []string{
		"deepseek-chat",
		"deepseek-reasoner",
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

func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("deepseek provider is not configured")
	}
	return llm.EinoComplete(ctx, p.chatModel, req, llm.ResolveModel(p, req.Model))
}

func (p *Provider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("deepseek provider is not configured")
	}
	return llm.EinoStream(ctx, p.chatModel, req, llm.ResolveModel(p, req.Model))
}

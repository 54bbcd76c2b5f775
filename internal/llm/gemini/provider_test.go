package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"

	"github.com/Rrens/finance-chat/internal/config"
	"github.com/Rrens/finance-chat/internal/llm"
)

func TestProvider_Defaults(t *testing.T) {
	p := NewProvider(config.GeminiConfig{APIKey: "g-key"})
	assert.True(t, p.IsConfigured())
	assert.Equal(t, "gemini-2.5-flash", p.DefaultModel())

	p = NewProvider(config.GeminiConfig{APIKey: "g-key", Model: "gemini-1.5-pro"})
	assert.Equal(t, "gemini-1.5-pro", p.DefaultModel())
}

func TestProvider_Unconfigured(t *testing.T) {
	p := NewProvider(config.GeminiConfig{})
	assert.False(t, p.IsConfigured())

	_, err := p.Complete(context.Background(), llm.Prompt("", "hi"))
	assert.ErrorContains(t, err, "not configured")
	_, err = p.Stream(context.Background(), llm.Prompt("", "hi"))
	assert.ErrorContains(t, err, "not configured")
}

func TestProvider_NoMessages(t *testing.T) {
	p := NewProvider(config.GeminiConfig{APIKey: "g-key"})

	_, err := p.Complete(context.Background(), llm.Request{System: "Be brief."})
	assert.ErrorContains(t, err, "no messages")
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{
			genai.Text("Your "),
			genai.Blob{MIMEType: "image/png", Data: []byte{0x1}},
			genai.Text("holdings"),
		}},
	}}}
	assert.Equal(t, "Your holdings", responseText(resp))
}

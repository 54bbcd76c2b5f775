package deepseek

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/finance-chat/internal/config"
	"github.com/Rrens/finance-chat/internal/llm"
)

func TestProvider_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer ds-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"d1","object":"chat.completion","created":1,"model":"deepseek-chat",`+
			`"choices":[{"index":0,"message":{"role":"assistant","content":"Diversify."},"finish_reason":"stop"}],`+
			`"usage":{"prompt_tokens":8,"completion_tokens":2,"total_tokens":10}}`)
	}))
	t.Cleanup(srv.Close)

	p, err := NewProvider(context.Background(), config.DeepSeekConfig{APIKey: "ds-test", BaseURL: srv.URL})
	require.NoError(t, err)
	require.True(t, p.IsConfigured())

	resp, err := p.Complete(context.Background(), llm.Prompt("You are a finance assistant.", "How do I reduce risk?"))
	require.NoError(t, err)

	assert.Equal(t, "Diversify.", resp.Content)
	assert.Equal(t, "deepseek-chat", resp.Model)
	assert.Equal(t, 10, resp.TokensUsed)
	assert.Equal(t, "deepseek-chat", got["model"])
}

func TestProvider_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"d1","object":"chat.completion","created":1,"model":"deepseek-chat","choices":[]}`)
	}))
	t.Cleanup(srv.Close)

	p, err := NewProvider(context.Background(), config.DeepSeekConfig{APIKey: "ds-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), llm.Prompt("", "hi"))
	assert.ErrorContains(t, err, "empty choices")
}

func TestProvider_Unconfigured(t *testing.T) {
	p, err := NewProvider(context.Background(), config.DeepSeekConfig{Model: "deepseek-reasoner"})
	require.NoError(t, err)

	assert.False(t, p.IsConfigured())
	assert.Equal(t, "deepseek", p.Name())
	assert.Equal(t, "deepseek-reasoner", p.DefaultModel())

	_, err = p.Complete(context.Background(), llm.Prompt("", "hi"))
	assert.ErrorContains(t, err, "not configured")
	_, err = p.Stream(context.Background(), llm.Prompt("", "hi"))
	assert.ErrorContains(t, err, "not configured")
}

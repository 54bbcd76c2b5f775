package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name       string
	configured bool
}

func (f *fakeProvider) Name() string              { return f.name }
func (f *fakeProvider) AvailableModels() []string { return []string{"small", "large"} }
func (f *fakeProvider) DefaultModel() string      { return "small" }
func (f *fakeProvider) IsConfigured() bool        { return f.configured }
func (f *fakeProvider) Complete(context.Context, Request) (*Response, error) {
	return &Response{Content: "ok"}, nil
}
func (f *fakeProvider) Stream(context.Context, Request) (Stream, error) {
	return nil, errors.New("not implemented")
}

func TestRouter(t *testing.T) {
	r := NewRouter("openai")
	r.RegisterProvider(&fakeProvider{name: "openai", configured: true})
	r.RegisterProvider(&fakeProvider{name: "anthropic", configured: false})

	p, err := r.GetProvider("")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = r.GetProvider("anthropic")
	assert.Error(t, err)

	_, err = r.GetProvider("mistral")
	assert.Error(t, err)

	assert.Equal(t, []string{"openai"}, r.ListProviders())

	infos := r.GetProvidersInfo()
	require.Len(t, infos, 2)
	assert.Equal(t, "anthropic", infos[0].Name)
	assert.False(t, infos[0].Configured)
	assert.True(t, infos[1].Default)
}

func TestResolveModel(t *testing.T) {
	p := &fakeProvider{name: "x"}
	assert.Equal(t, "large", ResolveModel(p, "large"))
	assert.Equal(t, "small", ResolveModel(p, "gpt-4-turbo"))
	assert.Equal(t, "small", ResolveModel(p, ""))
}

func TestLineStream(t *testing.T) {
	body := io.NopCloser(strings.NewReader("a\n\nskip\nb\nend\nnever\n"))
	s := NewLineStream(body, func(line []byte) (string, bool, error) {
		switch string(line) {
		case "skip":
			return "", false, nil
		case "end":
			return "!", true, nil
		}
		return string(line), false, nil
	})

	got, err := ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "ab!", got)
}

func TestLineStream_DecodeError(t *testing.T) {
	body := io.NopCloser(strings.NewReader("a\nbad\n"))
	s := NewLineStream(body, func(line []byte) (string, bool, error) {
		if string(line) == "bad" {
			return "", false, errors.New("boom")
		}
		return string(line), false, nil
	})

	got, err := ReadAll(s)
	assert.EqualError(t, err, "boom")
	assert.Equal(t, "a", got)
}

type fakeChatModel struct {
	input  []*schema.Message
	chunks []string
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	msg := schema.AssistantMessage(strings.Join(f.chunks, ""), nil)
	msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{TotalTokens: 42}}
	return msg, nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.input = input
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func TestEinoComplete(t *testing.T) {
	cm := &fakeChatModel{chunks: []string{"Your ", "portfolio"}}
	req := Prompt("system text", "how is my portfolio?")
	req.JSON = true

	resp, err := EinoComplete(context.Background(), cm, req, "gpt-4-turbo")
	require.NoError(t, err)
	assert.Equal(t, "Your portfolio", resp.Content)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Equal(t, "gpt-4-turbo", resp.Model)

	require.Len(t, cm.input, 2)
	assert.Equal(t, schema.System, cm.input[0].Role)
	assert.Contains(t, cm.input[0].Content, JSONInstruction)
	assert.Equal(t, schema.User, cm.input[1].Role)
}

func TestEinoStream(t *testing.T) {
	cm := &fakeChatModel{chunks: []string{"Diversify ", "", "across sectors."}}

	s, err := EinoStream(context.Background(), cm, Prompt("", "risk?"), "deepseek-chat")
	require.NoError(t, err)

	got, err := ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "Diversify across sectors.", got)
	require.Len(t, cm.input, 1)
}

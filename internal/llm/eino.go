package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoMessages converts a request into eino chat messages
func EinoMessages(req Request) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(req.Messages)+1)
	if sys := SystemPrompt(req); sys != "" {
		msgs = append(msgs, schema.SystemMessage(sys))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		case RoleSystem:
			msgs = append(msgs, schema.SystemMessage(m.Content))
		default:
			msgs = append(msgs, schema.UserMessage(m.Content))
		}
	}
	return msgs
}

func einoOptions(req Request, modelName string) []model.Option {
	opts := []model.Option{model.WithModel(modelName)}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}
	return opts
}

// EinoComplete runs a non-streaming completion on an eino chat model
func EinoComplete(ctx context.Context, cm model.BaseChatModel, req Request, modelName string) (*Response, error) {
	start := time.Now()

	msg, err := cm.Generate(ctx, EinoMessages(req), einoOptions(req, modelName)...)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	tokens := 0
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		tokens = msg.ResponseMeta.Usage.TotalTokens
	}

	return &Response{
		Content:    msg.Content,
		Model:      modelName,
		TokensUsed: tokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// EinoStream runs a streaming completion on an eino chat model
func EinoStream(ctx context.Context, cm model.BaseChatModel, req Request, modelName string) (Stream, error) {
	sr, err := cm.Stream(ctx, EinoMessages(req), einoOptions(req, modelName)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	return &einoStream{sr: sr}, nil
}

type einoStream struct {
	sr *schema.StreamReader[*schema.Message]
}

func (s *einoStream) Recv() (string, error) {
	for {
		msg, err := s.sr.Recv()
		if err != nil {
			return "", err
		}
		if msg != nil && msg.Content != "" {
			return msg.Content, nil
		}
	}
}

func (s *einoStream) Close() error {
	s.sr.Close()
	return nil
}

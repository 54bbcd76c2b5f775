package llm

import (
	"context"
	"io"
	"strings"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation
type Message struct {
	Role    string
	Content string
}

// Request contains completion parameters. An empty Model selects the
// provider default.
type Request struct {
	System      string
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
	// JSON asks for a single JSON object as the answer
	JSON bool
}

// Prompt builds a single-turn request
func Prompt(system, user string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: user}},
	}
}

// Response contains LLM completion result
type Response struct {
	Content    string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// Stream yields completion fragments in order. Recv returns io.EOF once the
// completion is exhausted.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Complete returns the whole answer at once
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream returns the answer incrementally
	Stream(ctx context.Context, req Request) (Stream, error)
}

// ReadAll drains s and closes it
func ReadAll(s Stream) (string, error) {
	defer s.Close()

	var b strings.Builder
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
}

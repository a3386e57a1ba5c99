// Package llm talks to chat language models for answer generation.
package llm

import (
	"context"
	"fmt"
)

// Providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultMaxTokens caps answers when Config leaves MaxTokens zero.
const DefaultMaxTokens = 1024

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Request is a system instruction plus the conversation to answer.
type Request struct {
	System   string
	Messages []Message
}

// Model produces answers. Stream calls onDelta for each text fragment in
// arrival order; an error from onDelta stops the stream and is returned.
type Model interface {
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request, onDelta func(string) error) error
	Name() string
}

// Config holds provider connection settings and sampling parameters.
type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c
}

// New creates the model for cfg.Provider.
func New(cfg Config) (Model, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIModel(cfg)
	case ProviderAnthropic:
		return NewAnthropicModel(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

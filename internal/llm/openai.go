package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIModel generates answers through an OpenAI-compatible chat
// completions API. Ollama serves one at <OLLAMA_URL>/v1.
type OpenAIModel struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

var _ Model = (*OpenAIModel)(nil)

func NewOpenAIModel(cfg Config) (*OpenAIModel, error) {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm base URL not set")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model not set")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "ollama"
	}
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	client := openai.NewClient(
		option.WithBaseURL(base),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)

	return &OpenAIModel{
		client:      &client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (m *OpenAIModel) Name() string {
	return m.model
}

func (m *OpenAIModel) params(req Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		if msg.Role == RoleAssistant {
			messages = append(messages, openai.AssistantMessage(msg.Content))
		} else {
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	return openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(m.model),
		Temperature: openai.Float(m.temperature),
		MaxTokens:   openai.Int(int64(m.maxTokens)),
	}
}

func (m *OpenAIModel) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := m.client.Chat.Completions.New(ctx, m.params(req))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (m *OpenAIModel) Stream(ctx context.Context, req Request, onDelta func(string) error) error {
	stream := m.client.Chat.Completions.NewStreaming(ctx, m.params(req))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := onDelta(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("chat completion stream failed: %w", err)
	}
	return nil
}

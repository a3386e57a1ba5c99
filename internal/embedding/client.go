package embedding

import (
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Config holds connection settings for an OpenAI-compatible embeddings API.
// Ollama serves one at <OLLAMA_URL>/v1.
type Config struct {
	// BaseURL is the API base URL, e.g. http://localhost:11434/v1.
	BaseURL string
	// APIKey is sent as a bearer token. Ollama ignores it.
	APIKey string
	// Model is the embedding model identifier.
	Model string
	// BatchSize caps the number of inputs per request (default DefaultBatchSize).
	BatchSize int
	// RequestsPerSecond paces requests; zero means unlimited.
	RequestsPerSecond float64
}

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client    *openai.Client
	model     string
	batchSize int
	rps       float64
}

// NewClient creates an embeddings client for the configured endpoint.
// SDK-level retries are disabled; the Embedder decides what to retry.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base URL not set")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model not set")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "ollama"
	}

	client := openai.NewClient(
		option.WithBaseURL(withTrailingSlash(cfg.BaseURL)),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)

	return &Client{
		client:    &client,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		rps:       cfg.RequestsPerSecond,
	}, nil
}

// Model returns the embedding model identifier.
func (c *Client) Model() string {
	return c.model
}

func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

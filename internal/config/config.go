// Package config resolves process configuration once at startup.
//
// Values are layered: built-in defaults, then an optional TOML file named by
// RAG_CONFIG, then environment variables. The resulting Config is treated as
// read-only for the lifetime of the process.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Vector store backends.
const (
	BackendQdrant = "qdrant"
	BackendSQLite = "sqlite"
)

// Language model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default values, matching the reference deployment (Ollama + a single collection).
const (
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultVectorStoreURL = "http://localhost:6334"
	DefaultCollection     = "my_documents"
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultLLMModel       = "mistral"
	DefaultTemperature    = 0.7
	DefaultMaxTokens      = 1024
	DefaultDocsDir        = "./documents"
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultTopK           = 4
	DefaultContextTokens  = 16000
	DefaultBatchSize      = 64
	DefaultPort           = "8080"
)

// ErrInvalidConfig is returned by Validate for unusable settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// VectorStore selects and configures the vector store backend.
type VectorStore struct {
	Backend    string `toml:"backend"`
	URL        string `toml:"url"`
	APIKey     string `toml:"api_key"`
	SQLitePath string `toml:"sqlite_path"`
	Collection string `toml:"collection"`
}

// Embedding configures the OpenAI-compatible embedding endpoint.
type Embedding struct {
	BaseURL   string  `toml:"base_url"`
	APIKey    string  `toml:"api_key"`
	Model     string  `toml:"model"`
	BatchSize int     `toml:"batch_size"`
	RPS       float64 `toml:"requests_per_second"`
}

// LLM configures the generation provider.
type LLM struct {
	Provider    string  `toml:"provider"`
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// Corpus describes where ingestion reads documents from.
type Corpus struct {
	Dir             string   `toml:"dir"`
	Extensions      []string `toml:"extensions"`
	GitHubRepo      string   `toml:"github_repo"`
	GitHubPath      string   `toml:"github_path"`
	GitHubRef       string   `toml:"github_ref"`
	GitHubToken     string   `toml:"github_token"`
	LoadConcurrency int      `toml:"load_concurrency"`
}

// Chunking holds the splitter policy.
type Chunking struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

// Server configures the query surface.
type Server struct {
	Port       string `toml:"port"`
	ServerMode bool   `toml:"server_mode"`
	TopK       int    `toml:"top_k"`
	// ContextTokens bounds the context block handed to the model.
	ContextTokens int `toml:"context_max_tokens"`
}

// Config is the root configuration.
type Config struct {
	OllamaURL    string      `toml:"ollama_url"`
	OllamaModels []string    `toml:"ollama_models"`
	LogLevel     string      `toml:"log_level"`
	VectorStore  VectorStore `toml:"vector_store"`
	Embedding    Embedding   `toml:"embedding"`
	LLM          LLM         `toml:"llm"`
	Corpus       Corpus      `toml:"corpus"`
	Chunking     Chunking    `toml:"chunking"`
	Server       Server      `toml:"server"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OllamaURL: DefaultOllamaURL,
		LogLevel:  "info",
		VectorStore: VectorStore{
			Backend:    BackendQdrant,
			URL:        DefaultVectorStoreURL,
			SQLitePath: "rag.db",
			Collection: DefaultCollection,
		},
		Embedding: Embedding{
			Model:     DefaultEmbeddingModel,
			BatchSize: DefaultBatchSize,
		},
		LLM: LLM{
			Provider:    ProviderOpenAI,
			Model:       DefaultLLMModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		Corpus: Corpus{
			Dir:             DefaultDocsDir,
			Extensions:      []string{".pdf", ".md"},
			LoadConcurrency: 4,
		},
		Chunking: Chunking{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		Server: Server{
			Port:          DefaultPort,
			TopK:          DefaultTopK,
			ContextTokens: DefaultContextTokens,
		},
	}
}

// Load builds the configuration from defaults, the optional RAG_CONFIG file and
// the environment, then validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("RAG_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.resolveDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables. getenv is injected for tests.
func (c *Config) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = i
			}
		}
	}
	float := func(key string, dst *float64) {
		if v := getenv(key); v != "" {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				*dst = f
			}
		}
	}
	list := func(key string, dst *[]string) {
		if v := getenv(key); v != "" {
			*dst = splitList(v)
		}
	}

	str("OLLAMA_URL", &c.OllamaURL)
	list("OLLAMA_MODELS", &c.OllamaModels)
	str("LOG_LEVEL", &c.LogLevel)

	str("VECTOR_STORE", &c.VectorStore.Backend)
	str("VECTOR_STORE_URL", &c.VectorStore.URL)
	str("VECTOR_STORE_API_KEY", &c.VectorStore.APIKey)
	str("SQLITE_PATH", &c.VectorStore.SQLitePath)
	str("COLLECTION_NAME", &c.VectorStore.Collection)

	str("EMBEDDING_BASE_URL", &c.Embedding.BaseURL)
	str("EMBEDDING_API_KEY", &c.Embedding.APIKey)
	str("EMBEDDING_MODEL", &c.Embedding.Model)
	num("EMBEDDING_BATCH_SIZE", &c.Embedding.BatchSize)
	float("EMBEDDING_RPS", &c.Embedding.RPS)

	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	str("LLM_API_KEY", &c.LLM.APIKey)
	str("LLM_MODEL", &c.LLM.Model)
	float("LLM_TEMPERATURE", &c.LLM.Temperature)
	num("LLM_MAX_TOKENS", &c.LLM.MaxTokens)

	str("DOCS_DIR", &c.Corpus.Dir)
	list("DOCS_EXTENSIONS", &c.Corpus.Extensions)
	str("CORPUS_GITHUB_REPO", &c.Corpus.GitHubRepo)
	str("CORPUS_GITHUB_PATH", &c.Corpus.GitHubPath)
	str("CORPUS_GITHUB_REF", &c.Corpus.GitHubRef)
	str("GITHUB_TOKEN", &c.Corpus.GitHubToken)
	num("LOAD_CONCURRENCY", &c.Corpus.LoadConcurrency)

	num("CHUNK_SIZE", &c.Chunking.Size)
	num("CHUNK_OVERLAP", &c.Chunking.Overlap)

	str("PORT", &c.Server.Port)
	num("TOP_K", &c.Server.TopK)
	num("CONTEXT_MAX_TOKENS", &c.Server.ContextTokens)
	if v := getenv("SERVER_MODE"); v != "" {
		c.Server.ServerMode = v == "true"
	}
}

// resolveDerived fills settings that default to other settings.
func (c *Config) resolveDerived() {
	c.OllamaURL = strings.TrimRight(c.OllamaURL, "/")
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = c.OllamaURL + "/v1"
	}
	if c.LLM.BaseURL == "" && c.LLM.Provider == ProviderOpenAI {
		c.LLM.BaseURL = c.OllamaURL + "/v1"
	}
	if len(c.OllamaModels) == 0 {
		c.OllamaModels = uniq([]string{c.Embedding.Model, c.LLM.Model})
	}
	for i, ext := range c.Corpus.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Corpus.Extensions[i] = ext
	}
}

// Validate rejects settings the pipelines cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Chunking.Size <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.Chunking.Size)
	case c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size:
		return fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d",
			ErrInvalidConfig, c.Chunking.Size, c.Chunking.Overlap)
	case c.Server.TopK <= 0:
		return fmt.Errorf("%w: top k must be positive, got %d", ErrInvalidConfig, c.Server.TopK)
	case c.Server.ContextTokens <= 0:
		return fmt.Errorf("%w: context token budget must be positive, got %d", ErrInvalidConfig, c.Server.ContextTokens)
	case c.VectorStore.Collection == "":
		return fmt.Errorf("%w: collection name is empty", ErrInvalidConfig)
	case len(c.Corpus.Extensions) == 0:
		return fmt.Errorf("%w: no document extensions configured", ErrInvalidConfig)
	}

	switch c.VectorStore.Backend {
	case BackendQdrant, BackendSQLite:
	default:
		return fmt.Errorf("%w: unknown vector store %q", ErrInvalidConfig, c.VectorStore.Backend)
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalidConfig, c.LLM.Provider)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

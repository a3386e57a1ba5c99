package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	cfg.resolveDerived()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "my_documents", cfg.VectorStore.Collection)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 4, cfg.Server.TopK)
	assert.Equal(t, 16000, cfg.Server.ContextTokens)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedding.BaseURL)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.Equal(t, []string{"nomic-embed-text", "mistral"}, cfg.OllamaModels)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.applyEnv(envFrom(map[string]string{
		"OLLAMA_URL":      "http://ollama:11434/",
		"COLLECTION_NAME": "manuals",
		"CHUNK_SIZE":      "500",
		"CHUNK_OVERLAP":   "50",
		"DOCS_EXTENSIONS": "pdf, .MD",
		"LLM_TEMPERATURE": "0.2",
		"SERVER_MODE":     "true",
		"TOP_K":           "not-a-number",
	}))
	cfg.resolveDerived()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "manuals", cfg.VectorStore.Collection)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, []string{".pdf", ".md"}, cfg.Corpus.Extensions)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.True(t, cfg.Server.ServerMode)
	assert.Equal(t, DefaultTopK, cfg.Server.TopK, "unparsable values keep the default")
	assert.Equal(t, "http://ollama:11434/v1", cfg.Embedding.BaseURL)
}

func TestAnthropicProviderHasNoDerivedBaseURL(t *testing.T) {
	cfg := Default()
	cfg.applyEnv(envFrom(map[string]string{"LLM_PROVIDER": "anthropic"}))
	cfg.resolveDerived()

	require.NoError(t, cfg.Validate())
	assert.Empty(t, cfg.LLM.BaseURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"zero size", func(c *Config) { c.Chunking.Size = 0 }},
		{"zero k", func(c *Config) { c.Server.TopK = 0 }},
		{"zero context budget", func(c *Config) { c.Server.ContextTokens = 0 }},
		{"unknown backend", func(c *Config) { c.VectorStore.Backend = "chroma" }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bard" }},
		{"empty collection", func(c *Config) { c.VectorStore.Collection = "" }},
		{"no extensions", func(c *Config) { c.Corpus.Extensions = nil }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.toml")
	content := `
log_level = "debug"

[vector_store]
backend = "sqlite"
collection = "from-file"

[chunking]
size = 800
overlap = 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("RAG_CONFIG", path)
	t.Setenv("COLLECTION_NAME", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, BackendSQLite, cfg.VectorStore.Backend)
	assert.Equal(t, "from-env", cfg.VectorStore.Collection, "environment overrides the file")
	assert.Equal(t, 800, cfg.Chunking.Size)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("RAG_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := Load()
	assert.Error(t, err)
}

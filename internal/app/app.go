// Package app builds the components both binaries share from a Config.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bull/pdf-rag/internal/config"
	"github.com/bull/pdf-rag/internal/embedding"
	ghclient "github.com/bull/pdf-rag/internal/github"
	"github.com/bull/pdf-rag/internal/llm"
	"github.com/bull/pdf-rag/internal/loader"
	"github.com/bull/pdf-rag/internal/storage"
)

// NewLogger returns a text logger at the named level. Unknown levels fall
// back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// OpenStore connects to the configured vector store backend.
func OpenStore(ctx context.Context, cfg config.VectorStore) (storage.VectorStore, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := storage.NewSQLiteStore(cfg.SQLitePath, cfg.Collection)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendQdrant:
		store, err := storage.NewQdrantStore(ctx, storage.QdrantConfig{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Collection: cfg.Collection,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.Backend)
	}
}

// NewEmbedder creates the embedding gateway.
func NewEmbedder(cfg config.Embedding) (*embedding.Embedder, error) {
	client, err := embedding.NewClient(embedding.Config{
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		BatchSize:         cfg.BatchSize,
		RequestsPerSecond: cfg.RPS,
	})
	if err != nil {
		return nil, err
	}
	return embedding.NewEmbedder(client), nil
}

// NewModel creates the generation model.
func NewModel(cfg config.LLM) (llm.Model, error) {
	return llm.New(llm.Config{
		Provider:    cfg.Provider,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
}

// CorpusSource returns the GitHub repository source when one is configured,
// and the documents directory otherwise.
func CorpusSource(cfg config.Corpus) (loader.Source, error) {
	if cfg.GitHubRepo == "" {
		dir, err := loader.NewDirSource(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return dir, nil
	}

	owner, repo, err := ghclient.ParseRepo(cfg.GitHubRepo)
	if err != nil {
		return nil, err
	}
	client, err := ghclient.NewClient(ghclient.ClientConfig{Token: cfg.GitHubToken})
	if err != nil {
		return nil, fmt.Errorf("github client: %w", err)
	}
	return ghclient.NewFetcher(client, owner, repo, cfg.GitHubPath, cfg.GitHubRef), nil
}

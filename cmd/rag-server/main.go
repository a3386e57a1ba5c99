// Package main provides the query server: the HTTP API and the MCP tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/pdf-rag/internal/api"
	"github.com/bull/pdf-rag/internal/app"
	"github.com/bull/pdf-rag/internal/config"
	mcpserver "github.com/bull/pdf-rag/internal/mcp"
	"github.com/bull/pdf-rag/internal/rag"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdio MCP traffic on stdout stays clean.
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	store, err := app.OpenStore(ctx, cfg.VectorStore)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := app.NewEmbedder(cfg.Embedding)
	if err != nil {
		return err
	}
	model, err := app.NewModel(cfg.LLM)
	if err != nil {
		return err
	}

	orchestrator := rag.NewOrchestrator(
		rag.NewRetriever(embedder, store, cfg.Server.TopK, logger),
		rag.NewAssembler(cfg.Server.ContextTokens),
		model,
		logger,
	)

	mcpServer := mcpserver.NewServer(&mcpserver.Config{Querier: orchestrator})

	mux := http.NewServeMux()
	api.NewServer(orchestrator, store, cfg.Server.TopK, logger).Register(mux)
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(mcpServer, false, logger))

	httpServer := &http.Server{
		Addr:              net.JoinHostPort("0.0.0.0", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "model", model.Name(),
			"store", cfg.VectorStore.Backend, "collection", cfg.VectorStore.Collection)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
		close(httpErr)
	}()

	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown", "error", err)
		}
	}()

	if cfg.Server.ServerMode {
		// HTTP mode: API and MCP over HTTP for remote clients
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return nil
		case err := <-httpErr:
			return err
		}
	}

	// Stdio mode: MCP over stdin/stdout for local clients, HTTP alongside
	logger.Info("Starting MCP server (stdio mode)")
	return serveStdio(ctx, httpErr, mcpServer.Run)
}

// serveStdio runs the stdio MCP server until it ends or the HTTP listener
// fails. httpErr yields at most one error and is then closed.
func serveStdio(ctx context.Context, httpErr <-chan error, runMCP func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mcpErr := make(chan error, 1)
	go func() { mcpErr <- runMCP(ctx) }()

	for {
		select {
		case err := <-mcpErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case err, ok := <-httpErr:
			if !ok {
				httpErr = nil
				continue
			}
			return fmt.Errorf("http server: %w", err)
		}
	}
}

// Package main provides the ingestion CLI: it indexes the document corpus
// into the vector store and provisions local models.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/pdf-rag/internal/app"
	"github.com/bull/pdf-rag/internal/config"
	ghclient "github.com/bull/pdf-rag/internal/github"
	"github.com/bull/pdf-rag/internal/indexer"
	"github.com/bull/pdf-rag/internal/loader"
	"github.com/bull/pdf-rag/internal/provision"
	"github.com/bull/pdf-rag/internal/storage"
	"github.com/bull/pdf-rag/internal/textsplit"
)

var rootCmd = &cobra.Command{
	Use:   "rag-ingest",
	Short: "Document ingestion tool",
	Long:  "CLI tool for loading PDF and Markdown documents into the vector store",
	// Errors are printed once by main.
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest the document corpus",
	Long: `Loads, chunks, embeds and stores every document in the corpus.

This command:
1. Skips ingestion if the collection already holds records
2. Discovers documents in DOCS_DIR (or CORPUS_GITHUB_REPO)
3. Splits each page or section into overlapping chunks
4. Embeds the chunks and upserts them into the collection

Environment variables:
  VECTOR_STORE       qdrant or sqlite (default: qdrant)
  VECTOR_STORE_URL   Qdrant gRPC URL (default: http://localhost:6334)
  COLLECTION_NAME    Collection name (default: my_documents)
  OLLAMA_URL         Ollama base URL (default: http://localhost:11434)
  EMBEDDING_MODEL    Embedding model (default: nomic-embed-text)
  DOCS_DIR           Documents directory (default: ./documents)
  CHUNK_SIZE         Chunk size in characters (default: 1000)
  CHUNK_OVERLAP      Chunk overlap in characters (default: 200)`,
	RunE: runIngest,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show collection status",
	RunE:  runStatus,
}

var setupModelsCmd = &cobra.Command{
	Use:   "setup-models",
	Short: "Pull missing Ollama models",
	Long: `Lists the models available in Ollama and pulls the missing ones.

Models come from OLLAMA_MODELS (comma separated), or EMBEDDING_MODEL and LLM_MODEL.`,
	RunE: runSetupModels,
}

func init() {
	rootCmd.AddCommand(runCmd, statusCmd, setupModelsCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup() (context.Context, context.CancelFunc, *config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	return ctx, cancel, cfg, logger, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	start := time.Now()

	fmt.Println("Starting ingestion...")
	fmt.Println()

	// 1. Connect to the vector store
	fmt.Printf("Connecting to %s vector store...\n", cfg.VectorStore.Backend)
	store, err := app.OpenStore(ctx, cfg.VectorStore)
	if err != nil {
		return fmt.Errorf("Failed to connect to vector store: %w", err)
	}
	defer store.Close()

	// 2. Embedding gateway
	embedder, err := app.NewEmbedder(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("Failed to create embedder: %w", err)
	}

	// 3. Corpus source
	source, err := app.CorpusSource(cfg.Corpus)
	if err != nil {
		return fmt.Errorf("Failed to open corpus: %w", err)
	}
	if fetcher, ok := source.(*ghclient.Fetcher); ok {
		if sha, err := fetcher.LatestCommitSHA(ctx); err == nil {
			logger.Info("Reading corpus from GitHub", "location", fetcher.Location(), "commit", sha)
		}
	}

	// 4. Run the pipeline
	splitter := textsplit.New(
		textsplit.WithChunkSize(cfg.Chunking.Size),
		textsplit.WithOverlap(cfg.Chunking.Overlap),
		textsplit.WithLogger(logger),
	)
	pipeline := indexer.NewPipeline(source, loader.DefaultRegistry(), splitter, embedder, store, indexer.Options{
		Extensions:      cfg.Corpus.Extensions,
		LoadConcurrency: cfg.Corpus.LoadConcurrency,
	}, logger)

	fmt.Printf("Ingesting documents from %s...\n", source.Location())
	result, err := pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("Ingestion failed: %w", err)
	}

	// 5. Print results
	fmt.Println()
	if result.Skipped {
		fmt.Printf("Collection %q already has %d records, skipping ingestion.\n",
			cfg.VectorStore.Collection, result.ExistingRecords)
		return nil
	}
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Files: %d/%d\n", result.LoadedFiles, result.TotalFiles)
	fmt.Printf("  Pages: %d\n", result.Pages)
	fmt.Printf("  Chunks: %d\n", result.Chunks)
	if result.Dimension > 0 {
		fmt.Printf("  Dimension: %d\n", result.Dimension)
	}
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedFiles) > 0 {
		fmt.Println()
		fmt.Println("Failed files:")
		for _, failed := range result.FailedFiles {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, _, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	store, err := app.OpenStore(ctx, cfg.VectorStore)
	if err != nil {
		return fmt.Errorf("Failed to connect to vector store: %w", err)
	}
	defer store.Close()

	fmt.Printf("Backend:    %s\n", cfg.VectorStore.Backend)
	fmt.Printf("Collection: %s\n", cfg.VectorStore.Collection)

	count, err := store.Count(ctx)
	switch {
	case errors.Is(err, storage.ErrCollectionNotFound):
		fmt.Println("Status:     not created (run `rag-ingest run`)")
		return nil
	case err != nil:
		return fmt.Errorf("Failed to count records: %w", err)
	}

	fmt.Println("Status:     ready")
	fmt.Printf("Records:    %d\n", count)
	return nil
}

func runSetupModels(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	fmt.Println("Setting up Ollama models...")
	fmt.Printf("  URL: %s\n", cfg.OllamaURL)
	fmt.Printf("  Models: %v\n", cfg.OllamaModels)

	client := provision.NewClient(cfg.OllamaURL, nil, logger)
	pulled, err := client.Ensure(ctx, cfg.OllamaModels, func(model, status string) {
		fmt.Printf("\r  %s: %-40s", model, status)
	})
	if err != nil {
		fmt.Println()
		return fmt.Errorf("Failed to set up models: %w", err)
	}

	fmt.Println()
	if len(pulled) == 0 {
		fmt.Println("All models already installed.")
	} else {
		fmt.Printf("Pulled: %v\n", pulled)
	}
	return nil
}

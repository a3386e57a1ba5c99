// Package indexer turns a document corpus into vector store records.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bull/pdf-rag/internal/embedding"
	"github.com/bull/pdf-rag/internal/loader"
	"github.com/bull/pdf-rag/internal/metadata"
	"github.com/bull/pdf-rag/internal/storage"
	"github.com/bull/pdf-rag/internal/textsplit"
)

// DefaultLoadConcurrency bounds concurrent file loads.
const DefaultLoadConcurrency = 4

// probeText is embedded once before any write to check the provider and
// learn the vector dimension.
const probeText = "test"

// recordNamespace scopes deterministic record ids.
var recordNamespace = uuid.MustParse("6f1c8e0a-3c55-4f0e-9a6b-2f7d4f0a9b12")

// Result contains statistics about an ingestion run.
type Result struct {
	// Skipped is set when the collection already held records.
	Skipped         bool
	ExistingRecords uint64

	TotalFiles  int
	LoadedFiles int
	FailedFiles []FailedFile
	Pages       int
	Chunks      int
	Dimension   int
	Duration    time.Duration
}

// FailedFile represents a file that failed to load.
type FailedFile struct {
	Path   string
	Reason string
}

// Options tune discovery and loading.
type Options struct {
	// Extensions selects files to ingest (default: every registered loader).
	Extensions []string
	// LoadConcurrency bounds concurrent file loads (default DefaultLoadConcurrency).
	LoadConcurrency int
}

// Pipeline orchestrates ingestion from discovery to storage.
type Pipeline struct {
	source      loader.Source
	loaders     loader.Registry
	splitter    *textsplit.Splitter
	embedder    embedding.Gateway
	store       storage.VectorStore
	extensions  []string
	concurrency int
	logger      *slog.Logger
}

// NewPipeline creates an ingestion pipeline with the given components.
func NewPipeline(
	source loader.Source,
	loaders loader.Registry,
	splitter *textsplit.Splitter,
	embedder embedding.Gateway,
	store storage.VectorStore,
	opts Options,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if splitter == nil {
		splitter = textsplit.New(textsplit.WithLogger(logger))
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = loaders.Extensions()
	}
	concurrency := opts.LoadConcurrency
	if concurrency <= 0 {
		concurrency = DefaultLoadConcurrency
	}
	return &Pipeline{
		source:      source,
		loaders:     loaders,
		splitter:    splitter,
		embedder:    embedder,
		store:       store,
		extensions:  exts,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run ingests the corpus once. A collection that already holds records is
// left untouched. Per-file load failures are collected in the result; store
// and embedding failures abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}
	defer func() { result.Duration = time.Since(start) }()

	// 1. Idempotency check
	count, err := p.store.Count(ctx)
	switch {
	case errors.Is(err, storage.ErrCollectionNotFound):
		p.logger.Info("No existing collection found, will create it")
	case err != nil:
		return nil, fmt.Errorf("count check: %w", err)
	case count > 0:
		p.logger.Info("Collection already populated, skipping ingestion", "records", count)
		result.Skipped = true
		result.ExistingRecords = count
		return result, nil
	}

	// 2. Discovery
	files, err := p.source.List(ctx, p.extensions)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	result.TotalFiles = len(files)
	if len(files) == 0 {
		p.logger.Warn("No documents found, nothing to ingest",
			"location", p.source.Location(), "extensions", p.extensions)
		return result, nil
	}
	p.logger.Info("Found documents", "count", len(files), "location", p.source.Location())

	// 3. Load
	docs, err := p.load(ctx, files, result)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Pages = len(docs)
	p.logger.Info("Loaded pages", "pages", len(docs), "files", result.LoadedFiles, "failed", len(result.FailedFiles))

	// 4. Chunk
	chunks := p.splitter.SplitDocuments(textDocuments(docs))
	result.Chunks = len(chunks)
	if len(chunks) == 0 {
		p.logger.Warn("No text extracted, nothing to ingest")
		return result, nil
	}
	p.logger.Info("Split into chunks", "chunks", len(chunks),
		"size", p.splitter.ChunkSize(), "overlap", p.splitter.Overlap())

	// 5. Normalize
	units := unitKeys(docs)
	records := make([]storage.Record, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		records[i] = storage.Record{
			ID:       RecordID(docs[c.Document].Source, units[c.Document], c.Seq),
			Text:     c.Text,
			Metadata: metadata.Normalize(c.Metadata),
		}
		texts[i] = c.Text
	}

	// 6. Embed + store
	probe, err := p.embedder.Embed(ctx, probeText)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding probe: %w", embedding.ErrProviderUnavailable, err)
	}
	if len(probe) == 0 {
		return nil, fmt.Errorf("%w: embedding probe returned an empty vector", embedding.ErrProviderUnavailable)
	}
	result.Dimension = len(probe)
	p.logger.Info("Embedding provider reachable", "dimension", len(probe))

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed chunks: %w", embedding.ErrProviderUnavailable, err)
	}
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(records))
	}
	for i := range records {
		records[i].Vector = vectors[i]
	}

	if err := p.store.EnsureCollection(ctx, len(probe)); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	if err := p.store.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("store records: %w", err)
	}

	p.logger.Info("Ingestion complete",
		"files", result.LoadedFiles,
		"failed", len(result.FailedFiles),
		"chunks", len(records),
		"duration", time.Since(start),
	)

	return result, nil
}

// load reads and parses files concurrently, keeping discovery order.
func (p *Pipeline) load(ctx context.Context, files []string, result *Result) ([]loader.Page, error) {
	perFile := make([][]loader.Page, len(files))
	failures := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, file := range files {
		g.Go(func() error {
			pages, err := p.loadFile(gctx, file)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failures[i] = err
				p.logger.Warn("Failed to load document", "file", file, "error", err)
				return nil
			}
			perFile[i] = pages
			p.logger.Debug("Loaded document", "file", file, "pages", len(pages))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var docs []loader.Page
	for i, file := range files {
		if failures[i] != nil {
			result.FailedFiles = append(result.FailedFiles, FailedFile{Path: file, Reason: failures[i].Error()})
			continue
		}
		result.LoadedFiles++
		docs = append(docs, perFile[i]...)
	}
	return docs, nil
}

func (p *Pipeline) loadFile(ctx context.Context, file string) ([]loader.Page, error) {
	data, err := p.source.Read(ctx, file)
	if err != nil {
		return nil, err
	}
	return p.loaders.Load(ctx, file, data)
}

func textDocuments(pages []loader.Page) []textsplit.Document {
	docs := make([]textsplit.Document, len(pages))
	for i, page := range pages {
		docs[i] = textsplit.Document{Text: page.Text, Metadata: page.Metadata()}
	}
	return docs
}

// unitKeys names each page within its source: the page number, or the
// section ordinal for formats without pages.
func unitKeys(pages []loader.Page) []string {
	keys := make([]string, len(pages))
	sections := make(map[string]int)
	for i, page := range pages {
		if page.PageNumber > 0 {
			keys[i] = strconv.Itoa(page.PageNumber)
			continue
		}
		keys[i] = "s" + strconv.Itoa(sections[page.Source])
		sections[page.Source]++
	}
	return keys
}

// RecordID derives a stable id from the chunk's source, its unit within the
// source and its position within the unit, so re-ingesting unchanged files
// overwrites records.
func RecordID(source, unit string, seq int) string {
	key := source + "\x00" + unit + "\x00" + strconv.Itoa(seq)
	return uuid.NewSHA1(recordNamespace, []byte(key)).String()
}

// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package finrag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/finrag/ai"
	"github.com/poiesic/finrag/ai/gemini"
	"github.com/poiesic/finrag/ai/openai"
	"github.com/poiesic/finrag/chunk"
	"github.com/poiesic/finrag/config"
	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/crawl"
	"github.com/poiesic/finrag/extract"
	"github.com/poiesic/finrag/fetch"
	"github.com/poiesic/finrag/index"
	"github.com/poiesic/finrag/ingestion"
	"github.com/poiesic/finrag/ledger"
	"github.com/poiesic/finrag/search"
	"github.com/poiesic/finrag/storage"
	"github.com/poiesic/finrag/storage/badger"
	"github.com/poiesic/finrag/storage/chromem"
)

// ErrNoRuns is returned when a ledger export is requested before any run completed.
var ErrNoRuns = errors.New("no ingestion runs recorded")

// Database owns the persistent stores and the embedding provider and
// builds pipelines and searchers on top of them.
type Database struct {
	cfg         *config.Config
	backend     *badger.Backend
	ledgerRepo  *badger.LedgerRepository
	catalogRepo *badger.CatalogRepository
	vectors     *chromem.Store
	provider    ai.AIProvider
	logger      *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	provider ai.AIProvider
	inMemory bool
	logger   *slog.Logger
}

// WithAIProvider uses provider instead of building one from the configuration.
// The Database takes ownership and closes it.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps the ledger database and the vector store in memory.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase validates cfg and opens the ledger database, the vector store
// and the embedding provider.
func NewDatabase(ctx context.Context, cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := badger.OpenBackend(cfg.Storage.LedgerDB, options.inMemory)
	if err != nil {
		return nil, err
	}

	ledgerRepo, err := badger.NewLedgerRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	vectors, err := chromem.OpenStore(cfg.Storage.VectorDir, cfg.Storage.Collection, options.inMemory,
		chromem.WithCompression(cfg.Storage.Compress),
		chromem.WithLogger(options.logger))
	if err != nil {
		ledgerRepo.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = newProvider(ctx, cfg.AIConfig())
		if err != nil {
			vectors.Close()
			ledgerRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		cfg:         cfg,
		backend:     backend,
		ledgerRepo:  ledgerRepo,
		catalogRepo: badger.NewCatalogRepository(backend),
		vectors:     vectors,
		provider:    provider,
		logger:      options.logger,
	}, nil
}

// newProvider builds the embedding provider named by config.Provider.
func newProvider(ctx context.Context, config *ai.Config) (ai.AIProvider, error) {
	config.Normalize()
	switch config.Provider {
	case ai.ProviderGemini:
		return gemini.NewProvider(ctx, config)
	default:
		return openai.NewProvider(config)
	}
}

// Close releases the provider and the stores.
func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}
	if err := db.vectors.Close(); err != nil {
		db.logger.Error("error closing vector store", "err", err)
		return err
	}
	if err := db.ledgerRepo.Close(); err != nil {
		db.logger.Error("error closing ledger repository", "err", err)
		return err
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) Config() *config.Config {
	return db.cfg
}

func (db *Database) LedgerRepository() storage.LedgerRepository {
	return db.ledgerRepo
}

func (db *Database) CatalogRepository() storage.CatalogRepository {
	return db.catalogRepo
}

func (db *Database) VectorStore() storage.VectorStore {
	return db.vectors
}

// NewIngestionPipeline wires the crawler, resolver, fetcher, extractor,
// chunker and indexer described by the configuration. opts are applied after
// the defaults, so callers can override the export path or add progress output.
func (db *Database) NewIngestionPipeline(ctx context.Context, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	cfg := db.cfg
	client := crawl.NewHTTPClient(cfg.Listing.Timeout, cfg.Listing.InsecureTLS)

	session, err := crawl.NewSession(cfg.Listing.BaseSite,
		crawl.WithHTTPClient(client),
		crawl.WithUserAgent(cfg.Listing.UserAgent),
		crawl.WithLogger(db.logger))
	if err != nil {
		return nil, err
	}

	crawlerOpts := []crawl.CrawlerOption{crawl.WithPageDelay(cfg.Listing.PageDelay)}
	if cfg.Listing.RespectRobots {
		policy, err := crawl.LoadRobots(ctx, session)
		if err != nil {
			return nil, err
		}
		crawlerOpts = append(crawlerOpts, crawl.WithRobots(policy))
	}
	crawler, err := crawl.NewCrawler(session, cfg.Listing.BaseURL, cfg.Listing.Pages, crawlerOpts...)
	if err != nil {
		return nil, err
	}

	resolver, err := crawl.NewResolver(session)
	if err != nil {
		return nil, err
	}

	fetcher, err := fetch.NewFetcher(cfg.Storage.ContentDir,
		fetch.WithHTTPClient(client),
		fetch.WithUserAgent(cfg.Listing.UserAgent),
		fetch.WithLogger(db.logger))
	if err != nil {
		return nil, err
	}

	chunker, err := chunk.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	indexer, err := index.NewIndexer(db.provider.Embedder(), db.vectors,
		index.WithDedup(cfg.Index.Dedup),
		index.WithLogger(db.logger))
	if err != nil {
		return nil, err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithLogger(db.logger),
		ingestion.WithChunker(chunker),
		ingestion.WithLedgerRepository(db.ledgerRepo),
		ingestion.WithCatalog(db.catalogRepo),
		ingestion.WithExportPath(cfg.Export.Path),
	}
	return ingestion.NewPipeline(crawler, resolver, fetcher,
		extract.NewExtractor(extract.WithLogger(db.logger)), indexer,
		append(pipelineOpts, opts...)...)
}

// NewSearcher creates a searcher over the vector store.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithLogger(db.logger)}, opts...)
	return search.NewSearcher(db.vectors, db.provider, opts...)
}

// LatestRun returns the most recently started run.
func (db *Database) LatestRun(ctx context.Context) (*core.RunInfo, error) {
	runs, err := db.ledgerRepo.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return runs[len(runs)-1], nil
}

// ExportLedger writes the persisted ledger of a run as CSV. An empty runID
// selects the latest run. It returns the ID of the exported run.
func (db *Database) ExportLedger(ctx context.Context, runID string, w io.Writer) (string, error) {
	if runID == "" {
		run, err := db.LatestRun(ctx)
		if err != nil {
			return "", err
		}
		runID = run.ID
	} else if _, err := db.ledgerRepo.GetRun(ctx, runID); err != nil {
		return "", fmt.Errorf("run %s: %w", runID, err)
	}

	rows, err := db.ledgerRepo.GetLedgerRows(ctx, runID)
	if err != nil {
		return "", err
	}
	return runID, ledger.WriteCSV(w, rows)
}

// VerifyContent re-hashes every cataloged document with the given number of workers.
func (db *Database) VerifyContent(ctx context.Context, workers int) ([]fetch.VerifyResult, error) {
	return fetch.Verify(ctx, db.catalogRepo, workers)
}

// NewReindexer creates a reindexer that rebuilds the vector store from the
// cataloged documents in the content directory, without network access.
func (db *Database) NewReindexer(progress io.Writer) (*ingestion.Reindexer, error) {
	chunker, err := chunk.New(db.cfg.Chunking.Size, db.cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	indexer, err := index.NewIndexer(db.provider.Embedder(), db.vectors,
		index.WithDedup(db.cfg.Index.Dedup),
		index.WithLogger(db.logger))
	if err != nil {
		return nil, err
	}
	return ingestion.NewReindexer(db.catalogRepo,
		extract.NewExtractor(extract.WithLogger(db.logger)), indexer,
		&ingestion.ReindexConfig{Chunker: chunker, Logger: db.logger}, progress)
}

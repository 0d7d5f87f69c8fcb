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


package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/finrag/chunk"
	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/ledger"
	"github.com/poiesic/finrag/storage"
)

// Pipeline takes filings from the listing into the vector store and the ledger.
// Records are processed sequentially in listing order.
type Pipeline struct {
	source     ListingSource
	resolver   ReportResolver
	fetcher    DocumentFetcher
	extractor  TextExtractor
	indexer    ChunkIndexer
	chunker    *chunk.Chunker
	ledgerRepo storage.LedgerRepository
	catalog    storage.CatalogRepository
	exportPath string
	progress   io.Writer
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunker replaces the default 1000/200 chunker.
func WithChunker(c *chunk.Chunker) Option {
	return func(p *Pipeline) error {
		if c == nil {
			return fmt.Errorf("chunker cannot be nil")
		}
		p.chunker = c
		return nil
	}
}

// WithLedgerRepository persists ledger rows and the run summary.
func WithLedgerRepository(repo storage.LedgerRepository) Option {
	return func(p *Pipeline) error {
		p.ledgerRepo = repo
		return nil
	}
}

// WithCatalog records every indexed document in the content catalog.
func WithCatalog(catalog storage.CatalogRepository) Option {
	return func(p *Pipeline) error {
		p.catalog = catalog
		return nil
	}
}

// WithExportPath writes the ledger CSV to path at the end of each run.
func WithExportPath(path string) Option {
	return func(p *Pipeline) error {
		p.exportPath = path
		return nil
	}
}

// WithProgress reports page progress to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	source ListingSource,
	resolver ReportResolver,
	fetcher DocumentFetcher,
	extractor TextExtractor,
	indexer ChunkIndexer,
	opts ...Option,
) (*Pipeline, error) {
	if source == nil {
		return nil, ErrListingRequired
	}
	if resolver == nil {
		return nil, ErrResolverRequired
	}
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if indexer == nil {
		return nil, ErrIndexerRequired
	}

	p := &Pipeline{
		source:    source,
		resolver:  resolver,
		fetcher:   fetcher,
		extractor: extractor,
		indexer:   indexer,
		chunker:   chunk.Default(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

// RunSummary describes the outcome of one run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Pages      int
	Records    int
	Dropped    int // records without a report link
	Documents  int
	Chunks     int
	Warnings   int
	Failures   map[string]int
	Ledger     []*core.LedgerRow
}

// Failed returns the total number of records skipped after a failure.
func (s *RunSummary) Failed() int {
	total := 0
	for _, n := range s.Failures {
		total += n
	}
	return total
}

// Run crawls every listing page and ingests each filing.
// Record failures are counted; any other error ends the run and is returned
// together with the partial summary.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Failures:  make(map[string]int),
	}
	logger := p.logger.With("run", summary.RunID)

	ledgerOpts := []ledger.Option{ledger.WithLogger(p.logger)}
	if p.ledgerRepo != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithRepository(p.ledgerRepo))
	}
	ldg, err := ledger.New(summary.RunID, ledgerOpts...)
	if err != nil {
		return nil, err
	}

	var progress *ProgressTracker
	if p.progress != nil {
		progress = NewProgressTracker(p.progress, p.source.Pages())
		progress.Start()
	}

	logger.Info("ingestion started", "pages", p.source.Pages())
	pages, err := p.source.Walk(ctx, func(ctx context.Context, page *core.ListingPage) error {
		summary.Warnings += len(page.Warnings)
		for i := range page.Records {
			record := page.Records[i]
			summary.Records++
			if err := p.ingest(ctx, summary.RunID, ldg, record, summary); err != nil {
				if !core.IsRecordFailure(err) {
					return err
				}
				summary.Failures[failureKind(err)]++
				logger.Warn("skipping filing",
					"page", record.Page, "row", record.Row,
					"issuer", record.Issuer, "year", record.Year, "err", err)
			}
		}
		if progress != nil {
			progress.Advance(summary.Documents)
		}
		return nil
	})
	summary.Pages = pages
	summary.Ledger = ldg.Rows()
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		summary.FinishedAt = time.Now().UTC()
		return summary, fmt.Errorf("run %s: %w", summary.RunID, err)
	}

	if p.exportPath != "" {
		if err := ldg.ExportFile(p.exportPath); err != nil {
			return summary, fmt.Errorf("exporting ledger: %w", err)
		}
	}

	summary.FinishedAt = time.Now().UTC()
	if p.ledgerRepo != nil {
		run := &core.RunInfo{
			ID:         summary.RunID,
			StartedAt:  summary.StartedAt,
			FinishedAt: summary.FinishedAt,
			Pages:      summary.Pages,
			Documents:  summary.Documents,
		}
		if err := p.ledgerRepo.SaveRun(ctx, run); err != nil {
			return summary, fmt.Errorf("saving run: %w", err)
		}
	}

	logger.Info("ingestion finished",
		"pages", summary.Pages, "records", summary.Records, "documents", summary.Documents,
		"chunks", summary.Chunks, "dropped", summary.Dropped, "failed", summary.Failed(),
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt))
	return summary, nil
}

// ingest takes one filing record through every stage.
func (p *Pipeline) ingest(ctx context.Context, runID string, ldg *ledger.Ledger, record core.FilingRecord, summary *RunSummary) error {
	if !record.HasReportLink() {
		summary.Dropped++
		p.logger.Info("filing has no report link", "page", record.Page, "row", record.Row, "issuer", record.Issuer)
		return nil
	}

	doc, err := p.resolver.Resolve(ctx, record)
	if err != nil {
		return err
	}

	file, err := p.fetcher.Fetch(ctx, *doc)
	if err != nil {
		return err
	}

	text, err := p.extractor.Extract(ctx, file)
	if err != nil {
		return err
	}
	if text.IsBlank() {
		return fmt.Errorf("%w: %s", core.ErrEmptyText, doc.Name)
	}

	chunks := p.chunker.Split(text.Text, core.ChunkMetadata{
		Source:     doc.Name,
		URL:        doc.URL,
		Issuer:     record.Issuer,
		Year:       record.Year,
		ReportType: record.ReportTypeLabel,
	})
	stored, err := p.indexer.Index(ctx, runID, chunks)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = ldg.Append(ctx, core.LedgerRow{
		Issuer:       record.Issuer,
		Year:         record.Year,
		ReportType:   record.ReportTypeLabel,
		DocumentURL:  doc.URL,
		DocumentName: doc.Name,
		IndexedAt:    now,
	})
	if err != nil {
		return err
	}

	if p.catalog != nil {
		err := p.catalog.PutDocument(ctx, &core.CatalogEntry{
			Name:       doc.Name,
			URL:        doc.URL,
			Path:       file.Path,
			Checksum:   file.Checksum,
			Issuer:     record.Issuer,
			Year:       record.Year,
			ReportType: record.ReportTypeLabel,
			Size:       file.Size,
			Chunks:     stored,
			FetchedAt:  now,
		})
		if err != nil {
			return fmt.Errorf("cataloging %s: %w", doc.Name, err)
		}
	}

	summary.Documents++
	summary.Chunks += stored
	return nil
}

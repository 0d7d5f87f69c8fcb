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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/finrag/chunk"
	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/storage"
)

// ErrCatalogRequired is returned when a reindexer has no catalog to read from.
var ErrCatalogRequired = errors.New("catalog repository required")

// ReindexConfig holds configuration for a reindex pass.
type ReindexConfig struct {
	// Chunker splits the re-extracted text. Nil means the 1000/200 default.
	Chunker *chunk.Chunker

	// Logger receives per-document failures. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultReindexConfig returns a ReindexConfig with the default chunker.
func DefaultReindexConfig() *ReindexConfig {
	return &ReindexConfig{
		Chunker: chunk.Default(),
		Logger:  slog.Default(),
	}
}

// Reindexer rebuilds the vector store from the documents already in the
// local content store. It never touches the network: every cataloged file
// is extracted again, its old entries are purged, and it is chunked and
// indexed with the configured embedder.
type Reindexer struct {
	catalog   storage.CatalogRepository
	extractor TextExtractor
	indexer   DocumentIndexer
	chunker   *chunk.Chunker
	progress  io.Writer
	logger    *slog.Logger
}

// ReindexSummary describes the outcome of a reindex pass.
type ReindexSummary struct {
	RunID     string
	Documents int // cataloged documents considered
	Indexed   int
	Chunks    int
	Failures  map[string]int
	Elapsed   time.Duration
}

// Failed returns the number of documents that could not be reindexed.
func (s *ReindexSummary) Failed() int {
	total := 0
	for _, n := range s.Failures {
		total += n
	}
	return total
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr), may be nil.
func NewReindexer(catalog storage.CatalogRepository, extractor TextExtractor, indexer DocumentIndexer, config *ReindexConfig, progress io.Writer) (*Reindexer, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if indexer == nil {
		return nil, ErrIndexerRequired
	}
	if config == nil {
		config = DefaultReindexConfig()
	}
	chunker := config.Chunker
	if chunker == nil {
		chunker = chunk.Default()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reindexer{
		catalog:   catalog,
		extractor: extractor,
		indexer:   indexer,
		chunker:   chunker,
		progress:  progress,
		logger:    logger.With("component", "reindexer"),
	}, nil
}

// Run reindexes every cataloged document in name order.
// Documents that fail extraction or embedding are counted and skipped;
// catalog errors and cancellation end the pass.
func (r *Reindexer) Run(ctx context.Context) (*ReindexSummary, error) {
	summary := &ReindexSummary{
		RunID:    uuid.NewString(),
		Failures: make(map[string]int),
	}

	entries, err := r.catalog.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	summary.Documents = len(entries)
	if len(entries) == 0 {
		r.printf("No documents found in catalog (0 documents)\n")
		return summary, nil
	}

	r.printf("Starting reindex of %d documents\n", len(entries))
	var tracker *ProgressTracker
	if r.progress != nil {
		tracker = newTracker(r.progress, len(entries), "documents", "chunks")
		tracker.Start()
	}
	start := time.Now()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		stored, err := r.reindex(ctx, summary.RunID, entry)
		switch {
		case err == nil:
			summary.Indexed++
			summary.Chunks += stored
		case core.IsRecordFailure(err):
			summary.Failures[failureKind(err)]++
			r.logger.Warn("skipping document", "document", entry.Name, "path", entry.Path, "err", err)
		default:
			return summary, fmt.Errorf("reindexing %s: %w", entry.Name, err)
		}
		if tracker != nil {
			tracker.Advance(summary.Chunks)
		}
	}

	if tracker != nil {
		tracker.Finish()
	}
	summary.Elapsed = time.Since(start)
	r.printf("Reindex complete. Indexed %d of %d documents (%d chunks) in %v\n",
		summary.Indexed, summary.Documents, summary.Chunks, summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}

// reindex re-extracts one cataloged file, replaces all of its stored
// entries and refreshes its chunk count. The old entries are purged only
// once the new text is known to be usable.
func (r *Reindexer) reindex(ctx context.Context, runID string, entry *core.CatalogEntry) (int, error) {
	file := &core.FetchedFile{
		Document: core.ResolvedDocument{
			Filing: core.FilingRecord{
				Issuer:          entry.Issuer,
				Year:            entry.Year,
				ReportTypeLabel: entry.ReportType,
			},
			URL:  entry.URL,
			Name: entry.Name,
		},
		Path:     entry.Path,
		Size:     entry.Size,
		Checksum: entry.Checksum,
	}

	text, err := r.extractor.Extract(ctx, file)
	if err != nil {
		return 0, err
	}
	if text.IsBlank() {
		return 0, fmt.Errorf("%w: %s", core.ErrEmptyText, entry.Name)
	}

	chunks := r.chunker.Split(text.Text, core.ChunkMetadata{
		Source:     entry.Name,
		URL:        entry.URL,
		Issuer:     entry.Issuer,
		Year:       entry.Year,
		ReportType: entry.ReportType,
	})
	if err := r.indexer.Purge(ctx, entry.Name); err != nil {
		return 0, err
	}
	stored, err := r.indexer.Index(ctx, runID, chunks)
	if err != nil {
		return 0, err
	}

	if stored != entry.Chunks {
		updated := *entry
		updated.Chunks = stored
		if err := r.catalog.PutDocument(ctx, &updated); err != nil {
			return 0, fmt.Errorf("updating catalog: %w", err)
		}
	}
	return stored, nil
}

func (r *Reindexer) printf(format string, args ...any) {
	if r.progress != nil {
		fmt.Fprintf(r.progress, format, args...)
	}
}

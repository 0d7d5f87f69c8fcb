package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/poiesic/finrag/ai"
	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/storage"
)

var (
	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrVectorStoreRequired is returned when no vector store is provided.
	ErrVectorStoreRequired = errors.New("vector store required")
)

// Indexer embeds the chunks of one document and writes them to the vector store.
type Indexer struct {
	embedder ai.Embedder
	store    storage.VectorStore
	dedup    bool
	logger   *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithLogger sets the logger for the indexer.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		ix.logger = logger
		return nil
	}
}

// WithDedup controls whether entry IDs are stable across runs.
// When false (the default) the run ID is mixed into every key, so each run
// appends new entries. When true a re-run replaces the entries it wrote before.
func WithDedup(dedup bool) Option {
	return func(ix *Indexer) error {
		ix.dedup = dedup
		return nil
	}
}

// NewIndexer creates an append-only indexer; see WithDedup.
func NewIndexer(embedder ai.Embedder, store storage.VectorStore, opts ...Option) (*Indexer, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrVectorStoreRequired
	}

	ix := &Indexer{
		embedder: embedder,
		store:    store,
		dedup:    false,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}
	ix.logger = ix.logger.With("component", "indexer")
	return ix, nil
}

// Purge removes every stored entry of the named document, whatever run or
// chunk parameters wrote it. Failures wrap core.ErrEmbeddingFailed.
func (ix *Indexer) Purge(ctx context.Context, source string) error {
	if source == "" {
		return fmt.Errorf("%w: purge requires a document name", core.ErrEmbeddingFailed)
	}
	if err := ix.store.DeleteWhere(ctx, map[string]string{core.MetaSource: source}); err != nil {
		return fmt.Errorf("%w: purging %s: %w", core.ErrEmbeddingFailed, source, err)
	}
	ix.logger.Debug("purged document", "document", source)
	return nil
}

// EntryID returns the vector store key of a chunk.
func EntryID(chunk *core.TextChunk, runID string, dedup bool) string {
	parts := []string{chunk.Metadata.Source, strconv.Itoa(chunk.Index), chunk.Text}
	if !dedup {
		parts = append(parts, runID)
	}
	return core.IDFromParts(parts...).Hex()
}

// Index embeds all chunks in one batch call and upserts them in one batch call.
// It returns the number of stored entries. Every failure wraps core.ErrEmbeddingFailed.
func (ix *Indexer) Index(ctx context.Context, runID string, chunks []core.TextChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: %w: no chunks", core.ErrEmbeddingFailed, core.ErrEmptyBatch)
	}

	texts := make([]string, len(chunks))
	blank := true
	for i := range chunks {
		texts[i] = chunks[i].Text
		if strings.TrimSpace(texts[i]) != "" {
			blank = false
		}
	}
	source := chunks[0].Metadata.Source
	if blank {
		return 0, fmt.Errorf("%w: %w: all %d chunks of %s are blank", core.ErrEmbeddingFailed, core.ErrEmptyBatch, len(chunks), source)
	}

	ix.logger.Debug("embedding chunks", "document", source, "chunks", len(chunks))
	vectors, err := ix.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: embedding %s: %w", core.ErrEmbeddingFailed, source, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: embedding result mismatch. expected %d, received %d", core.ErrEmbeddingFailed, len(chunks), len(vectors))
	}

	entries := make([]core.IndexedEntry, len(chunks))
	for i := range chunks {
		entries[i] = core.IndexedEntry{
			ID:       EntryID(&chunks[i], runID, ix.dedup),
			Vector:   vectors[i],
			Text:     chunks[i].Text,
			Metadata: chunks[i].EntryMetadata(),
		}
	}

	if err := ix.store.Upsert(ctx, entries); err != nil {
		return 0, fmt.Errorf("%w: storing %s: %w", core.ErrEmbeddingFailed, source, err)
	}
	ix.logger.Info("indexed document", "document", source, "entries", len(entries))
	return len(entries), nil
}

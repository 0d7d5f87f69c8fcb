package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"sync/atomic"

	chromemgo "github.com/philippgille/chromem-go"
	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/storage"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "ammc_reports"

var ErrCollectionRequired = errors.New("collection name is required")

// Store implements storage.VectorStore on a chromem-go collection.
type Store struct {
	db          *chromemgo.DB
	collection  *chromemgo.Collection
	compress    bool
	concurrency int
	closed      atomic.Bool
	logger      *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithCompression gzips the persisted documents.
func WithCompression(compress bool) Option {
	return func(s *Store) error {
		s.compress = compress
		return nil
	}
}

// WithConcurrency sets how many goroutines chromem uses when adding a batch.
func WithConcurrency(n int) Option {
	return func(s *Store) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be positive, got %d", n)
		}
		s.concurrency = n
		return nil
	}
}

// OpenStore opens the named collection. With inMemory false the
// collection is persisted under path and reloaded on the next open.
func OpenStore(path, collection string, inMemory bool, opts ...Option) (*Store, error) {
	if collection == "" {
		return nil, ErrCollectionRequired
	}

	s := &Store{
		concurrency: runtime.NumCPU(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "vector-store", "collection", collection)

	if inMemory {
		s.db = chromemgo.NewDB()
	} else {
		db, err := chromemgo.NewPersistentDB(path, s.compress)
		if err != nil {
			return nil, fmt.Errorf("opening vector store at %s: %w", path, err)
		}
		s.db = db
	}

	// Vectors are always supplied by the caller, so no embedding func is attached.
	coll, err := s.db.GetOrCreateCollection(collection, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", collection, err)
	}
	s.collection = coll
	s.logger.Debug("vector store opened", "path", path, "in_memory", inMemory, "count", coll.Count())

	return s, nil
}

// Upsert writes entries in one batch. Existing IDs are replaced.
func (s *Store) Upsert(ctx context.Context, entries []core.IndexedEntry) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	if len(entries) == 0 {
		return nil
	}

	docs := make([]chromemgo.Document, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			return fmt.Errorf("%w: entry %d has no id", storage.ErrInvalidEntry, i)
		}
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: entry %s has no vector", storage.ErrInvalidEntry, e.ID)
		}
		docs = append(docs, chromemgo.Document{
			ID:        e.ID,
			Metadata:  maps.Clone(e.Metadata),
			Embedding: e.Vector,
			Content:   e.Text,
		})
	}

	if err := s.collection.AddDocuments(ctx, docs, s.concurrency); err != nil {
		return fmt.Errorf("upserting %d entries: %w", len(docs), err)
	}
	s.logger.Debug("upserted entries", "count", len(docs))
	return nil
}

// Query returns up to limit entries closest to vector, most similar first.
func (s *Store) Query(ctx context.Context, vector []float32, limit int, where map[string]string) ([]*core.SearchResult, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	// chromem rejects requests for more results than the collection holds
	count := s.collection.Count()
	if count == 0 {
		return []*core.SearchResult{}, nil
	}
	limit = min(limit, count)

	hits, err := s.collection.QueryEmbedding(ctx, vector, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}

	results := make([]*core.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, &core.SearchResult{
			Entry: core.IndexedEntry{
				ID:       h.ID,
				Vector:   h.Embedding,
				Text:     h.Content,
				Metadata: h.Metadata,
			},
			Score: h.Similarity,
		})
	}
	return results, nil
}

// DeleteWhere removes the entries whose metadata matches every pair of where.
func (s *Store) DeleteWhere(ctx context.Context, where map[string]string) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	if len(where) == 0 {
		return fmt.Errorf("%w: delete requires a metadata filter", storage.ErrInvalidQuery)
	}

	before := s.collection.Count()
	if err := s.collection.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("deleting entries: %w", err)
	}
	s.logger.Debug("deleted entries", "where", where, "count", before-s.collection.Count())
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	return s.collection.Count()
}

// Close marks the store closed. Persisted documents are written on upsert.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

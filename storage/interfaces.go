package storage

import (
	"context"

	"github.com/poiesic/finrag/core"
)

// VectorStore persists embedded chunks and answers similarity queries.
// Implementations must be thread-safe.
type VectorStore interface {
	// Upsert writes entries in one batch. An entry whose ID already exists
	// is replaced. Entries must carry a non-empty ID and a vector.
	Upsert(ctx context.Context, entries []core.IndexedEntry) error

	// Query returns up to limit entries closest to vector, most similar first.
	// where restricts results to entries whose metadata matches every pair.
	Query(ctx context.Context, vector []float32, limit int, where map[string]string) ([]*core.SearchResult, error)

	// DeleteWhere removes every entry whose metadata matches all pairs of
	// where. An empty filter is rejected with ErrInvalidQuery.
	DeleteWhere(ctx context.Context, where map[string]string) error

	// Count returns the number of stored entries.
	Count() int

	// Close releases resources held by the store.
	Close() error
}

// LedgerRepository persists ledger rows and run summaries, keyed by run ID.
type LedgerRepository interface {
	// AppendLedgerRows stores rows for a run after any rows already stored
	// for it, preserving order.
	AppendLedgerRows(ctx context.Context, runID string, rows ...*core.LedgerRow) error

	// GetLedgerRows returns a run's rows in append order.
	// Returns an empty slice for unknown runs.
	GetLedgerRows(ctx context.Context, runID string) ([]*core.LedgerRow, error)

	// SaveRun stores or replaces a run summary.
	SaveRun(ctx context.Context, run *core.RunInfo) error

	// GetRun retrieves a run summary.
	// Returns ErrNotFound if the run doesn't exist.
	GetRun(ctx context.Context, runID string) (*core.RunInfo, error)

	// ListRuns returns every run summary ordered by start time, oldest first.
	ListRuns(ctx context.Context) ([]*core.RunInfo, error)
}

// CatalogRepository tracks the latest fetched copy of each document.
type CatalogRepository interface {
	// PutDocument stores or replaces the entry for entry.Name and drops any
	// entry under another name with the same Path.
	PutDocument(ctx context.Context, entry *core.CatalogEntry) error

	// GetDocument retrieves an entry by document name.
	// Returns ErrNotFound if the document was never cataloged.
	GetDocument(ctx context.Context, name string) (*core.CatalogEntry, error)

	// ListDocuments returns all entries ordered by name.
	ListDocuments(ctx context.Context) ([]*core.CatalogEntry, error)
}

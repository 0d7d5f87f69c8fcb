package ingestion

import (
	"context"

	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/crawl"
	"github.com/poiesic/finrag/extract"
	"github.com/poiesic/finrag/fetch"
	"github.com/poiesic/finrag/index"
)

// ListingSource walks the paginated filing listing.
type ListingSource interface {
	Pages() int
	Walk(ctx context.Context, fn crawl.PageFunc) (int, error)
}

// ReportResolver locates the document behind a filing's report page.
type ReportResolver interface {
	Resolve(ctx context.Context, record core.FilingRecord) (*core.ResolvedDocument, error)
}

// DocumentFetcher downloads a resolved document to the content store.
type DocumentFetcher interface {
	Fetch(ctx context.Context, doc core.ResolvedDocument) (*core.FetchedFile, error)
}

// TextExtractor recovers plain text from a fetched document.
type TextExtractor interface {
	Extract(ctx context.Context, file *core.FetchedFile) (*core.ExtractedText, error)
}

// ChunkIndexer embeds and stores the chunks of one document.
type ChunkIndexer interface {
	Index(ctx context.Context, runID string, chunks []core.TextChunk) (int, error)
}

// DocumentIndexer can also drop every stored entry of a document before it
// is indexed again.
type DocumentIndexer interface {
	ChunkIndexer
	Purge(ctx context.Context, source string) error
}

var (
	_ ListingSource   = (*crawl.Crawler)(nil)
	_ ReportResolver  = (*crawl.Resolver)(nil)
	_ DocumentFetcher = (*fetch.Fetcher)(nil)
	_ TextExtractor   = (*extract.Extractor)(nil)
	_ ChunkIndexer    = (*index.Indexer)(nil)
	_ DocumentIndexer = (*index.Indexer)(nil)
)

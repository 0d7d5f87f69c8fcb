package ingestion

import (
	"errors"

	"github.com/poiesic/finrag/core"
)

var (
	// ErrListingRequired is returned when a listing source is not provided.
	ErrListingRequired = errors.New("listing source required")

	// ErrResolverRequired is returned when a report resolver is not provided.
	ErrResolverRequired = errors.New("report resolver required")

	// ErrFetcherRequired is returned when a document fetcher is not provided.
	ErrFetcherRequired = errors.New("document fetcher required")

	// ErrExtractorRequired is returned when a text extractor is not provided.
	ErrExtractorRequired = errors.New("text extractor required")

	// ErrIndexerRequired is returned when an indexer is not provided.
	ErrIndexerRequired = errors.New("indexer required")
)

// failureKinds names the record failures counted in a RunSummary.
var failureKinds = []struct {
	err  error
	name string
}{
	{core.ErrUnresolvableLink, "unresolvable_link"},
	{core.ErrFetchFailed, "fetch_failed"},
	{core.ErrExtractionFailed, "extraction_failed"},
	{core.ErrEmptyText, "empty_text"},
	{core.ErrEmbeddingFailed, "embedding_failed"},
	{core.ErrMissingField, "missing_field"},
}

// failureKind returns the counter name for a record failure.
func failureKind(err error) string {
	for _, k := range failureKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}

package ingestion

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/finrag/ai/mock"
	"github.com/poiesic/finrag/chunk"
	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/index"
	"github.com/poiesic/finrag/storage/chromem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogEntry(name, issuer string, chunks int) *core.CatalogEntry {
	return &core.CatalogEntry{
		Name:       name,
		URL:        "https://www.ammc.ma/sites/default/files/" + name + ".pdf",
		Path:       "pdf_documents/" + name + ".pdf",
		Checksum:   core.Checksum([]byte(name)),
		Issuer:     issuer,
		Year:       "2022",
		ReportType: "Etats financiers annuels",
		Size:       1024,
		Chunks:     chunks,
		FetchedAt:  time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC),
	}
}

func (h *harness) reindexer(t *testing.T, progress *bytes.Buffer) *Reindexer {
	t.Helper()
	ix, err := index.NewIndexer(h.embedder, h.store)
	require.NoError(t, err)
	var r *Reindexer
	if progress != nil {
		r, err = NewReindexer(h.catalog, h.extractor, ix, nil, progress)
	} else {
		r, err = NewReindexer(h.catalog, h.extractor, ix, nil, nil)
	}
	require.NoError(t, err)
	return r
}

func TestNewReindexer_Required(t *testing.T) {
	h := newHarness(t)
	ix, err := index.NewIndexer(h.embedder, h.store)
	require.NoError(t, err)

	_, err = NewReindexer(nil, h.extractor, ix, nil, nil)
	assert.ErrorIs(t, err, ErrCatalogRequired)
	_, err = NewReindexer(h.catalog, nil, ix, nil, nil)
	assert.ErrorIs(t, err, ErrExtractorRequired)
	_, err = NewReindexer(h.catalog, h.extractor, nil, nil, nil)
	assert.ErrorIs(t, err, ErrIndexerRequired)
}

func TestReindex_EmptyCatalog(t *testing.T) {
	h := newHarness(t)
	var buf bytes.Buffer

	summary, err := h.reindexer(t, &buf).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Documents)
	assert.Equal(t, 0, h.embedder.CallCount())
	assert.Contains(t, buf.String(), "0 documents")
}

func TestReindex_RebuildsStoreFromCatalog(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.catalog.PutDocument(ctx, catalogEntry("doc-a", "Banque A", 1)))
	require.NoError(t, h.catalog.PutDocument(ctx, catalogEntry("doc-b", "Banque B", 1)))
	h.extractor.texts["doc-a"] = strings.Repeat("a", 1500)
	h.extractor.texts["doc-b"] = "Bilan B"
	var buf bytes.Buffer

	summary, err := h.reindexer(t, &buf).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Documents)
	assert.Equal(t, 2, summary.Indexed)
	assert.Equal(t, 3, summary.Chunks)
	assert.Equal(t, 0, summary.Failed())
	assert.Equal(t, 3, h.store.Count())
	assert.Contains(t, buf.String(), "Documents: 2/2 (100.0%)")
	assert.Contains(t, buf.String(), "Reindex complete")

	// Chunk metadata is rebuilt from the catalog entry
	results, err := h.store.Query(ctx, mock.Vector("Bilan B"), 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	meta := results[0].Entry.Metadata
	assert.Equal(t, "Banque B", meta[core.MetaIssuer])
	assert.Equal(t, "2022", meta[core.MetaYear])
	assert.Equal(t, "Etats financiers annuels", meta[core.MetaReportType])
	assert.Equal(t, "doc-b", meta[core.MetaSource])

	entry, err := h.catalog.GetDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Chunks)
}

func TestReindex_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.catalog.PutDocument(ctx, catalogEntry("doc-a", "Banque A", 1)))
	h.extractor.texts["doc-a"] = "Compte de produits et charges"
	r := h.reindexer(t, nil)

	_, err := r.Run(ctx)
	require.NoError(t, err)
	_, err = r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, h.store.Count())
}

func TestReindex_ReplacesEntriesAfterChunkingChange(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.catalog.PutDocument(ctx, catalogEntry("doc-a", "Banque A", 3)))
	h.extractor.texts["doc-a"] = strings.Repeat("a", 2400)
	require.NoError(t, h.store.Upsert(ctx, []core.IndexedEntry{{
		ID:       "foreign",
		Vector:   mock.Vector("Bilan B"),
		Text:     "Bilan B",
		Metadata: map[string]string{core.MetaSource: "doc-b"},
	}}))
	ix, err := index.NewIndexer(h.embedder, h.store)
	require.NoError(t, err)

	first, err := NewReindexer(h.catalog, h.extractor, ix, nil, nil)
	require.NoError(t, err)
	_, err = first.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, h.store.Count())

	smaller, err := chunk.New(500, 100)
	require.NoError(t, err)
	second, err := NewReindexer(h.catalog, h.extractor, ix, &ReindexConfig{Chunker: smaller}, nil)
	require.NoError(t, err)
	summary, err := second.Run(ctx)
	require.NoError(t, err)

	// Only the six 500/100 windows remain for doc-a; doc-b is untouched
	assert.Equal(t, 6, summary.Chunks)
	assert.Equal(t, 7, h.store.Count())
	results, err := h.store.Query(ctx, mock.Vector("x"), 10, map[string]string{core.MetaSource: "doc-a"})
	require.NoError(t, err)
	require.Len(t, results, 6)
	for _, r := range results {
		assert.LessOrEqual(t, len([]rune(r.Entry.Text)), 500)
	}

	entry, err := h.catalog.GetDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, 6, entry.Chunks)
}

func TestReindex_FailuresAreContained(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.catalog.PutDocument(ctx, catalogEntry("doc-a", "Banque A", 1)))
	require.NoError(t, h.catalog.PutDocument(ctx, catalogEntry("doc-b", "Banque B", 1)))
	require.NoError(t, h.catalog.PutDocument(ctx, catalogEntry("doc-c", "Banque C", 1)))
	h.extractor.texts["doc-b"] = "Bilan B"
	h.extractor.texts["doc-c"] = "Bilan C"
	h.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if texts[0] == "Bilan C" {
			return nil, errors.New("quota exceeded")
		}
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = mock.Vector(text)
		}
		return vectors, nil
	}

	summary, err := h.reindexer(t, nil).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failures["empty_text"])
	assert.Equal(t, 1, summary.Failures["embedding_failed"])
	assert.Equal(t, 1, summary.Indexed)
	assert.Equal(t, 1, h.store.Count())
}

func TestReindex_ClosedStoreCountsFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.catalog.PutDocument(ctx, catalogEntry("doc-a", "Banque A", 1)))
	h.extractor.texts["doc-a"] = "Bilan A"

	store, err := chromem.OpenStore("", chromem.DefaultCollection, true)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	h.store = store

	summary, err := h.reindexer(t, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Indexed)
	assert.Equal(t, 1, summary.Failures["embedding_failed"])
}

func TestReindex_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t)
	require.NoError(t, h.catalog.PutDocument(context.Background(), catalogEntry("doc-a", "Banque A", 1)))
	cancel()

	_, err := h.reindexer(t, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

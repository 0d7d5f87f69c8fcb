package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRepository(t *testing.T) {
	ledgerRepo, catalog, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		ledgerRepo.Close()
		backend.Close()
	}()
	ctx := context.Background()

	entry := &core.CatalogEntry{
		Name:      "Rapport annuel 2023.pdf",
		URL:       "https://www.ammc.ma/sites/default/files/rapport.pdf",
		Path:      "pdf_documents/Rapport annuel 2023.pdf",
		Checksum:  core.Checksum([]byte("%PDF-1.4")),
		Size:      8,
		Chunks:    3,
		FetchedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, catalog.PutDocument(ctx, entry))
	require.NoError(t, catalog.PutDocument(ctx, &core.CatalogEntry{Name: "Bilan.pdf", Path: "pdf_documents/Bilan.pdf"}))

	got, err := catalog.GetDocument(ctx, entry.Name)
	require.NoError(t, err)
	assert.Equal(t, entry.Checksum, got.Checksum)
	assert.Equal(t, 3, got.Chunks)

	// Replace keeps a single entry per name
	entry.Chunks = 5
	require.NoError(t, catalog.PutDocument(ctx, entry))

	list, err := catalog.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Bilan.pdf", list[0].Name)
	assert.Equal(t, 5, list[1].Chunks)

	_, err = catalog.GetDocument(ctx, "missing.pdf")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = catalog.PutDocument(ctx, &core.CatalogEntry{})
	assert.ErrorIs(t, err, storage.ErrInvalidEntry)
}

func TestCatalogRepository_SharedPathKeepsLastName(t *testing.T) {
	ledgerRepo, catalog, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		ledgerRepo.Close()
		backend.Close()
	}()
	ctx := context.Background()

	// "Bilan a/b" and "Bilan a_b" are both stored as "Bilan a_b.pdf"
	path := "pdf_documents/Bilan a_b.pdf"
	require.NoError(t, catalog.PutDocument(ctx, &core.CatalogEntry{Name: "Bilan a/b", Path: path, Checksum: core.Checksum([]byte("first"))}))
	require.NoError(t, catalog.PutDocument(ctx, &core.CatalogEntry{Name: "Other", Path: "pdf_documents/Other.pdf"}))
	require.NoError(t, catalog.PutDocument(ctx, &core.CatalogEntry{Name: "Bilan a_b", Path: path, Checksum: core.Checksum([]byte("second"))}))

	list, err := catalog.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Bilan a_b", list[0].Name)
	assert.Equal(t, core.Checksum([]byte("second")), list[0].Checksum)
	assert.Equal(t, "Other", list[1].Name)

	_, err = catalog.GetDocument(ctx, "Bilan a/b")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Entries without a path never displace each other
	require.NoError(t, catalog.PutDocument(ctx, &core.CatalogEntry{Name: "x"}))
	require.NoError(t, catalog.PutDocument(ctx, &core.CatalogEntry{Name: "y"}))
	list, err = catalog.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

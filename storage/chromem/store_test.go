package chromem

import (
	"context"
	"testing"

	"github.com/poiesic/finrag/ai/mock"
	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, text, issuer string) core.IndexedEntry {
	return core.IndexedEntry{
		ID:     id,
		Vector: mock.Vector(text),
		Text:   text,
		Metadata: map[string]string{
			core.MetaSource: "Rapport annuel 2023",
			core.MetaIssuer: issuer,
		},
	}
}

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore("", DefaultCollection, true)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenStore_RequiresCollection(t *testing.T) {
	_, err := OpenStore("", "", true)
	assert.ErrorIs(t, err, ErrCollectionRequired)
}

func TestUpsert_ReplacesByID(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []core.IndexedEntry{
		entry("a", "total des actifs", "Banque X"),
		entry("b", "produit net bancaire", "Banque X"),
	}))
	assert.Equal(t, 2, s.Count())

	require.NoError(t, s.Upsert(ctx, []core.IndexedEntry{entry("a", "total des actifs", "Banque X")}))
	assert.Equal(t, 2, s.Count())
}

func TestUpsert_Empty(t *testing.T) {
	s := newMemoryStore(t)
	require.NoError(t, s.Upsert(context.Background(), nil))
	assert.Equal(t, 0, s.Count())
}

func TestUpsert_InvalidEntry(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []core.IndexedEntry{{Vector: mock.Vector("x"), Text: "x"}})
	assert.ErrorIs(t, err, storage.ErrInvalidEntry)

	err = s.Upsert(ctx, []core.IndexedEntry{{ID: "x", Text: "x"}})
	assert.ErrorIs(t, err, storage.ErrInvalidEntry)
	assert.Equal(t, 0, s.Count())
}

func TestQuery(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []core.IndexedEntry{
		entry("a", "total des actifs", "Banque X"),
		entry("b", "produit net bancaire", "Banque Y"),
		entry("c", "résultat net consolidé", "Banque X"),
	}))

	results, err := s.Query(ctx, mock.Vector("produit net bancaire"), 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].Entry.ID)
	assert.Equal(t, "produit net bancaire", results[0].Entry.Text)
	assert.Equal(t, "Banque Y", results[0].Entry.Metadata[core.MetaIssuer])
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	// Limit larger than the collection is clamped
	results, err = s.Query(ctx, mock.Vector("total des actifs"), 50, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Entry.ID)

	results, err = s.Query(ctx, mock.Vector("total des actifs"), 10, map[string]string{core.MetaIssuer: "Banque Y"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Entry.ID)
}

func TestQuery_EmptyAndInvalid(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	results, err := s.Query(ctx, mock.Vector("q"), 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = s.Query(ctx, mock.Vector("q"), 0, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = s.Query(ctx, nil, 5, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestClosedStore(t *testing.T) {
	s, err := OpenStore("", DefaultCollection, true)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Upsert(context.Background(), []core.IndexedEntry{entry("a", "x", "y")})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = s.Query(context.Background(), mock.Vector("x"), 1, nil)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	err = s.DeleteWhere(context.Background(), map[string]string{core.MetaSource: "x"})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestDeleteWhere(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	other := entry("c", "resultat net", "Banque Y")
	other.Metadata[core.MetaSource] = "Rapport annuel 2022"
	require.NoError(t, s.Upsert(ctx, []core.IndexedEntry{
		entry("a", "total des actifs", "Banque X"),
		entry("b", "produit net bancaire", "Banque X"),
		other,
	}))

	require.NoError(t, s.DeleteWhere(ctx, map[string]string{core.MetaSource: "Rapport annuel 2023"}))
	assert.Equal(t, 1, s.Count())

	results, err := s.Query(ctx, mock.Vector("total des actifs"), 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].Entry.ID)

	// No match is not an error
	require.NoError(t, s.DeleteWhere(ctx, map[string]string{core.MetaSource: "absent"}))
	assert.Equal(t, 1, s.Count())
}

func TestDeleteWhere_RequiresFilter(t *testing.T) {
	s := newMemoryStore(t)
	require.NoError(t, s.Upsert(context.Background(), []core.IndexedEntry{entry("a", "x", "y")}))

	err := s.DeleteWhere(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	assert.Equal(t, 1, s.Count())
}

func TestPersistentStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenStore(dir, DefaultCollection, false, WithConcurrency(1))
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []core.IndexedEntry{
		entry("a", "total des actifs", "Banque X"),
		entry("b", "produit net bancaire", "Banque X"),
	}))
	require.NoError(t, s.Close())

	s, err = OpenStore(dir, DefaultCollection, false)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 2, s.Count())

	results, err := s.Query(ctx, mock.Vector("produit net bancaire"), 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Entry.ID)
}

func TestWithConcurrency_Invalid(t *testing.T) {
	_, err := OpenStore("", DefaultCollection, true, WithConcurrency(0))
	assert.Error(t, err)
}

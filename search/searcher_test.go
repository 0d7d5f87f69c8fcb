package search

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/finrag/ai/mock"
	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/storage/chromem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMonitor captures monitor callbacks.
type recordingMonitor struct {
	started  string
	dims     int
	hits     int
	dropped  []string
	finished int
}

func (m *recordingMonitor) Start(query string)                         { m.started = query }
func (m *recordingMonitor) AfterEmbedding(dimensions int)              { m.dims = dimensions }
func (m *recordingMonitor) AfterVectorQuery(hits []*core.SearchResult) { m.hits = len(hits) }
func (m *recordingMonitor) BelowThreshold(hit *core.SearchResult)      { m.dropped = append(m.dropped, hit.Entry.ID) }
func (m *recordingMonitor) Finish(results []*core.SearchResult)        { m.finished = len(results) }

func seededStore(t *testing.T) *chromem.Store {
	t.Helper()
	store, err := chromem.OpenStore("", chromem.DefaultCollection, true)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	texts := map[string]string{
		"a": "total des actifs au 31 décembre",
		"b": "produit net bancaire en hausse",
		"c": "résultat net part du groupe",
	}
	issuers := map[string]string{"a": "Banque X", "b": "Banque X", "c": "Banque Y"}
	var entries []core.IndexedEntry
	for id, text := range texts {
		entries = append(entries, core.IndexedEntry{
			ID:       id,
			Vector:   mock.Vector(text),
			Text:     text,
			Metadata: map[string]string{core.MetaIssuer: issuers[id], core.MetaSource: "doc-" + id},
		})
	}
	require.NoError(t, store.Upsert(context.Background(), entries))
	return store
}

func TestNewSearcher_Required(t *testing.T) {
	_, err := NewSearcher(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewSearcher(seededStore(t), nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	_, err = NewSearcher(seededStore(t), mock.NewMockProvider(), WithMinSimilarity(2))
	assert.Error(t, err)
}

func TestFindSimilar(t *testing.T) {
	s, err := NewSearcher(seededStore(t), mock.NewMockProvider())
	require.NoError(t, err)

	results, err := s.FindSimilar(context.Background(), "produit net bancaire en hausse", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].Entry.ID)
	assert.Equal(t, "produit net bancaire en hausse", results[0].Entry.Text)
	assert.Equal(t, "doc-b", results[0].Entry.Metadata[core.MetaSource])
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestFindSimilar_MoreHitsThanEntries(t *testing.T) {
	s, err := NewSearcher(seededStore(t), mock.NewMockProvider())
	require.NoError(t, err)

	results, err := s.FindSimilar(context.Background(), "bilan", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestFindSimilarWhere(t *testing.T) {
	s, err := NewSearcher(seededStore(t), mock.NewMockProvider())
	require.NoError(t, err)

	results, err := s.FindSimilarWhere(context.Background(), "produit net bancaire en hausse", 5,
		map[string]string{core.MetaIssuer: "Banque Y"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].Entry.ID)
}

func TestFindSimilar_MinSimilarity(t *testing.T) {
	s, err := NewSearcher(seededStore(t), mock.NewMockProvider(), WithMinSimilarity(0.999))
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := s.FindSimilarWithMonitor(context.Background(), "total des actifs au 31 décembre", 3, nil, monitor)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Entry.ID)

	assert.Equal(t, "total des actifs au 31 décembre", monitor.started)
	assert.Equal(t, mock.DefaultDimensions, monitor.dims)
	assert.Equal(t, 3, monitor.hits)
	assert.Len(t, monitor.dropped, 2)
	assert.Equal(t, 1, monitor.finished)
}

func TestFindSimilar_Errors(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("service unavailable")
	}
	s, err := NewSearcher(seededStore(t), mock.NewMockProviderWithEmbedder(embedder))
	require.NoError(t, err)

	_, err = s.FindSimilar(context.Background(), "   ", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.FindSimilar(context.Background(), "bilan", 3)
	assert.Error(t, err)

	results, err := s.FindSimilar(context.Background(), "bilan", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

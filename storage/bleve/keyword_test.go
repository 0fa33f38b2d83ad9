package bleve

import (
	"context"
	"testing"

	"github.com/poiesic/burrow/core"
	"github.com/poiesic/burrow/storage"
	"github.com/poiesic/burrow/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

func newTestStore(t *testing.T) *KeywordStore {
	t.Helper()
	store, err := NewKeywordStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestKeywordStore_SimilaritySearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.AddDocuments(ctx, []schema.Document{
		{PageContent: "The loader crashes when the config file is missing", Metadata: map[string]any{"source": "bugs.md"}},
		{PageContent: "Startup is slow on a cold cache"},
		{PageContent: "Lunch is served at noon"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, 3, store.Len())

	docs, err := store.SimilaritySearch(ctx, "loader crash", 5)
	require.NoError(t, err)
	require.NotEmpty(t, docs)

	top := docs[0]
	assert.Contains(t, top.PageContent, "loader crashes")
	assert.Equal(t, "bugs.md", top.Metadata[storage.MetadataSource])
	assert.Greater(t, top.Score, float32(0))
	assert.Less(t, top.Score, float32(1))
	assert.InDelta(t, top.Metadata[storage.MetadataRelevanceScore], top.Score, 1e-6)

	for _, doc := range docs {
		assert.NotContains(t, doc.PageContent, "Lunch")
	}
}

func TestKeywordStore_Limits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docs := make([]schema.Document, 6)
	for i := range docs {
		docs[i] = schema.Document{PageContent: "crash report number"}
	}
	_, err := store.AddDocuments(ctx, docs)
	require.NoError(t, err)

	got, err := store.SimilaritySearch(ctx, "crash", 4)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = store.SimilaritySearch(ctx, "crash", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = store.SimilaritySearch(ctx, "crash", 4, vectorstores.WithScoreThreshold(0.999))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKeywordStore_RejectsBadOptions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SimilaritySearch(ctx, "crash", 3, vectorstores.WithScoreThreshold(2))
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = store.SimilaritySearch(ctx, "crash", 3, vectorstores.WithFilters(map[string]string{"a": "b"}))
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = store.AddDocuments(ctx, []schema.Document{{PageContent: ""}})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)

	_, err = store.AddDocuments(ctx, []schema.Document{{PageContent: "x", Metadata: map[string]any{"id": "abc"}}})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestKeywordStore_KeepsExplicitIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.AddDocuments(ctx, []schema.Document{
		{PageContent: "pinned crash note", Metadata: map[string]any{"id": "40"}},
		{PageContent: "another crash note"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"40", "41"}, ids)
}

func TestKeywordStore_IndexRepository(t *testing.T) {
	docRepo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		docRepo.Close()
		backend.Close()
	}()
	ctx := context.Background()

	for i := 0; i < 300; i++ {
		_, err := docRepo.AddDocuments(ctx, &core.Document{Content: "generic filler passage", Vector: []float32{1, 0}})
		require.NoError(t, err)
	}
	added, err := docRepo.AddDocuments(ctx, &core.Document{Content: "segfault inside the indexer", Source: "crash.log"})
	require.NoError(t, err)

	store := newTestStore(t)
	n, err := store.IndexRepository(ctx, docRepo)
	require.NoError(t, err)
	assert.Equal(t, 301, n)

	docs, err := store.SimilaritySearch(ctx, "segfault", 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, storage.FormatID(added[0].Id), docs[0].Metadata[storage.MetadataID])
	assert.Equal(t, "crash.log", docs[0].Metadata[storage.MetadataSource])

	_, err = store.IndexRepository(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrRepositoryRequired)
}

func TestSquashScore(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-1, 0},
		{0, 0},
		{1, 0.5},
		{3, 0.75},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, SquashScore(tt.in), 1e-9)
	}
}

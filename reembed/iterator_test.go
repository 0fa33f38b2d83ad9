package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/burrow/core"
	"github.com/poiesic/burrow/storage"
	"github.com/poiesic/burrow/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (storage.DocumentRepository, func()) {
	repo, _, cleanup := setupTestStores(t)
	return repo, cleanup
}

func setupTestStores(t *testing.T) (storage.DocumentRepository, storage.CheckpointRepository, func()) {
	repo, checkpoints, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		backend.Close()
	}
	return repo, checkpoints, cleanup
}

func addDocuments(t *testing.T, repo storage.DocumentRepository, n int) []*core.Document {
	t.Helper()
	docs := make([]*core.Document, n)
	for i := range docs {
		docs[i] = &core.Document{Content: fmt.Sprintf("passage %d", i)}
	}
	added, err := repo.AddDocuments(context.Background(), docs...)
	require.NoError(t, err)
	require.Len(t, added, n)
	return added
}

func TestDocumentIterator_Basic(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	added := addDocuments(t, repo, 3)

	iter := NewDocumentIterator(repo, 10)
	var seen []core.ID
	batches := 0
	err := iter.ForEach(context.Background(), 0, func(docs []*core.Document) error {
		batches++
		for _, doc := range docs {
			seen = append(seen, doc.Id)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, batches)
	assert.Equal(t, []core.ID{added[0].Id, added[1].Id, added[2].Id}, seen)
}

func TestDocumentIterator_Batching(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	addDocuments(t, repo, 10)

	tests := []struct {
		name      string
		batchSize int
		want      []int
	}{
		{"batch size 3", 3, []int{3, 3, 3, 1}},
		{"batch size 5", 5, []int{5, 5}},
		{"batch size 10", 10, []int{10}},
		{"batch size 20", 20, []int{10}},
		{"invalid batch size uses default", 0, []int{10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iter := NewDocumentIterator(repo, tt.batchSize)
			var sizes []int
			err := iter.ForEach(context.Background(), 0, func(docs []*core.Document) error {
				sizes = append(sizes, len(docs))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sizes)
		})
	}
}

func TestDocumentIterator_AfterID(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	added := addDocuments(t, repo, 6)

	iter := NewDocumentIterator(repo, 2)
	var seen []core.ID
	err := iter.ForEach(context.Background(), added[3].Id, func(docs []*core.Document) error {
		for _, doc := range docs {
			seen = append(seen, doc.Id)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{added[4].Id, added[5].Id}, seen)
}

func TestDocumentIterator_Empty(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	called := false
	err := NewDocumentIterator(repo, 10).ForEach(context.Background(), 0, func(docs []*core.Document) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called, "should not call fn for an empty database")
}

func TestDocumentIterator_StopsOnError(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	addDocuments(t, repo, 6)

	expectedErr := errors.New("stop")
	batches := 0
	err := NewDocumentIterator(repo, 2).ForEach(context.Background(), 0, func(docs []*core.Document) error {
		batches++
		return expectedErr
	})
	assert.ErrorIs(t, err, expectedErr)
	assert.Equal(t, 1, batches)
}

func TestDocumentIterator_ContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	addDocuments(t, repo, 6)

	ctx, cancel := context.WithCancel(context.Background())
	batches := 0
	err := NewDocumentIterator(repo, 2).ForEach(ctx, 0, func(docs []*core.Document) error {
		batches++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, batches)
}

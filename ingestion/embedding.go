package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/burrow/ai"
	"github.com/poiesic/burrow/core"
	"github.com/poiesic/burrow/storage"
)

// EmbeddingProcessorType names the embedding processor's checkpoint.
const EmbeddingProcessorType = "ingestion-embeddings"

// embeddingProcessor generates embeddings for stored documents.
type embeddingProcessor struct {
	repository  storage.DocumentRepository
	checkpoints storage.CheckpointRepository // optional
	embedder    ai.Embedder
	mu          sync.Mutex
	lastID      core.ID
	logger      *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(repository storage.DocumentRepository, checkpoints storage.CheckpointRepository, embedder ai.Embedder, logger *slog.Logger) (*embeddingProcessor, error) {
	if repository == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		repository:  repository,
		checkpoints: checkpoints,
		embedder:    embedder,
		logger:      logger.With("processor", "embeddings"),
	}, nil
}

// process embeds the specified documents and stores their normalized vectors.
func (ep *embeddingProcessor) process(ctx context.Context, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	ep.logger.Info("processing documents for embeddings", "documents", len(ids))

	// Sort first so checkpointing works correctly
	slices.Sort(ids)

	docs, err := ep.repository.GetDocuments(ctx, ids...)
	if err != nil {
		ep.logger.Error("error retrieving documents", "err", err)
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	ep.logger.Debug("generating embeddings for documents", "documents", len(texts))
	vectors, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(docs), len(vectors))
	}

	for i := range vectors {
		docs[i].Vector = core.NormalizeVector(vectors[i])
	}

	updated, err := ep.repository.UpdateDocuments(ctx, docs...)
	if err != nil {
		return err
	}

	highestID := updated[len(updated)-1].Id
	ep.mu.Lock()
	if highestID > ep.lastID {
		ep.lastID = highestID
	}
	ep.mu.Unlock()
	return nil
}

// checkpoint records the highest embedded ID when a checkpoint repository is configured.
func (ep *embeddingProcessor) checkpoint(ctx context.Context) error {
	if ep.checkpoints == nil {
		return nil
	}
	ep.mu.Lock()
	lastID := ep.lastID
	ep.mu.Unlock()
	if lastID == 0 {
		return nil
	}
	return ep.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: EmbeddingProcessorType,
		LastID:        lastID,
		UpdatedAt:     time.Now().UTC(),
	})
}

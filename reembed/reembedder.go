// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/burrow/ai"
	"github.com/poiesic/burrow/core"
	"github.com/poiesic/burrow/storage"
)

// ProcessorType names the reembedder's checkpoint.
const ProcessorType = "reembed"

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of documents to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Resume continues after the last checkpointed document instead of starting over
	Resume bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder orchestrates the reembedding of all documents in a database.
type Reembedder struct {
	repo        storage.DocumentRepository
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *DocumentIterator
	logger      *slog.Logger
}

// NewReembedder creates a new reembedder.
// checkpoints may be nil, in which case progress is not persisted and Resume has no effect.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.DocumentRepository, checkpoints storage.CheckpointRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:        repo,
		checkpoints: checkpoints,
		config:      config,
		progress:    progress,
		processor:   NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:    NewDocumentIterator(repo, config.BatchSize),
		logger:      slog.Default().With("component", "reembedder"),
	}
}

// Run executes the reembedding operation.
// Every stored document is reembedded with the configured embedder. After each
// batch the last processed ID is checkpointed; the checkpoint is removed once
// the run completes. Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) error {
	totalDocs, err := r.repo.CountDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}
	if totalDocs == 0 {
		fmt.Fprintf(r.progress, "No documents found in database (0 documents)\n")
		return nil
	}

	var afterID core.ID
	if r.config.Resume && r.checkpoints != nil {
		checkpoint, err := r.checkpoints.LoadCheckpoint(ctx, ProcessorType)
		if err != nil {
			return fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if checkpoint != nil {
			afterID = checkpoint.LastID
			r.logger.Info("resuming reembedding", "after_id", afterID)
		}
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d documents (batch size: %d)\n",
		totalDocs, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, totalDocs, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, afterID, func(docs []*core.Document) error {
		if err := r.processor.Process(ctx, docs); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		if err := r.saveCheckpoint(ctx, docs[len(docs)-1].Id); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}

		processed += len(docs)
		tracker.Increment(len(docs))
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()
	if r.checkpoints != nil {
		if err := r.checkpoints.DeleteCheckpoint(ctx, ProcessorType); err != nil {
			r.logger.Warn("failed to clear checkpoint", "err", err)
		}
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d documents in %v (%.1f documents/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())
	return nil
}

func (r *Reembedder) saveCheckpoint(ctx context.Context, lastID core.ID) error {
	if r.checkpoints == nil {
		return nil
	}
	return r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: ProcessorType,
		LastID:        lastID,
		UpdatedAt:     time.Now().UTC(),
	})
}

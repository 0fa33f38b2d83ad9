package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/burrow/ai"
	"github.com/poiesic/burrow/core"
	"github.com/poiesic/burrow/storage"
	"github.com/tmc/langchaingo/textsplitter"
)

// Default splitter settings, in runes.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// MetadataChunk is the metadata key holding a passage's position within its source.
const MetadataChunk = "chunk"

// Source is a named text to be split into passages.
type Source struct {
	Name     string            // Recorded as each passage's Source
	Text     string
	Metadata map[string]string // Copied onto every passage
}

// Pipeline orchestrates the ingestion of source texts.
// It stores passages synchronously and embeds them on a worker pool.
type Pipeline struct {
	repository    storage.DocumentRepository
	checkpoints   storage.CheckpointRepository
	embeddingPool *ants.Pool
	embeddingProc processor
	chunkSize     int
	chunkOverlap  int
	splitter      textsplitter.TextSplitter
	pending       sync.WaitGroup
	mu            sync.Mutex
	errs          []error
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		embeddingPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = embeddingPool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunking sets the passage size and the overlap between neighbouring passages.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		if size < 1 || overlap < 0 || overlap >= size {
			return ErrInvalidChunking
		}
		p.chunkSize = size
		p.chunkOverlap = overlap
		return nil
	}
}

// WithCheckpointRepository records the highest embedded document ID after every batch.
func WithCheckpointRepository(checkpoints storage.CheckpointRepository) Option {
	return func(p *Pipeline) error {
		p.checkpoints = checkpoints
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(repository storage.DocumentRepository, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if provider == nil || provider.Embedder() == nil {
		return nil, ErrEmbedderRequired
	}

	// Default pool size
	poolSize := max(runtime.NumCPU()/2, 1)
	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	// Create pipeline with defaults
	p := &Pipeline{
		repository:    repository,
		embeddingPool: embeddingPool,
		chunkSize:     DefaultChunkSize,
		chunkOverlap:  DefaultChunkOverlap,
		logger:        slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	p.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.chunkSize),
		textsplitter.WithChunkOverlap(p.chunkOverlap),
	)

	// Create processor after options are applied (so it gets final config)
	embeddingProc, err := newEmbeddingProcessor(repository, p.checkpoints, provider.Embedder(), p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// Split returns the passages text is divided into. Blank passages are dropped.
func (p *Pipeline) Split(text string) ([]string, error) {
	chunks, err := p.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	out := chunks[:0]
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) != "" {
			out = append(out, chunk)
		}
	}
	return out, nil
}

// Ingest splits the sources into passages, stores them and submits them for embedding.
// It returns the IDs of the stored passages. Embedding runs in the background;
// call Wait to block until it completes.
func (p *Pipeline) Ingest(ctx context.Context, sources ...Source) ([]core.ID, error) {
	var docs []*core.Document
	for _, source := range sources {
		chunks, err := p.Split(source.Text)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			p.logger.Warn("source has no text", "source", source.Name)
			continue
		}
		for i, chunk := range chunks {
			metadata := make(map[string]string, len(source.Metadata)+1)
			maps.Copy(metadata, source.Metadata)
			metadata[MetadataChunk] = strconv.Itoa(i)
			docs = append(docs, &core.Document{
				Content:  chunk,
				Source:   source.Name,
				Metadata: metadata,
			})
		}
	}
	if len(docs) == 0 {
		return nil, nil
	}

	// Add to storage
	added, err := p.repository.AddDocuments(ctx, docs...)
	if err != nil {
		return nil, err
	}

	// Extract IDs
	ids := make([]core.ID, len(added))
	for i, doc := range added {
		ids[i] = doc.Id
	}
	p.logger.Debug("stored passages", "sources", len(sources), "passages", len(ids))

	// Submit for async processing; embedding outlives the request context
	batch := append([]core.ID(nil), ids...)
	bgCtx := context.WithoutCancel(ctx)
	p.pending.Add(1)
	err = p.embeddingPool.Submit(func() {
		defer p.pending.Done()
		if err := p.embeddingProc.process(bgCtx, batch...); err != nil {
			p.logger.Error("error processing embeddings", "err", err)
			p.recordError(err)
			return
		}
		if err := p.embeddingProc.checkpoint(bgCtx); err != nil {
			p.logger.Error("error applying embedding checkpoint", "err", err)
			p.recordError(err)
		}
	})
	if err != nil {
		p.pending.Done()
		return ids, err
	}
	return ids, nil
}

func (p *Pipeline) recordError(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}

// Wait blocks until all submitted embedding work has finished and returns
// the errors it produced since the previous Wait, joined.
func (p *Pipeline) Wait() error {
	p.pending.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	err := errors.Join(p.errs...)
	p.errs = nil
	return err
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}

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
// Package burrow wires storage, AI services and the recursive retriever
// into a single Engine.
package burrow

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/burrow/ai"
	"github.com/poiesic/burrow/ai/openai"
	"github.com/poiesic/burrow/ingestion"
	"github.com/poiesic/burrow/reembed"
	"github.com/poiesic/burrow/retriever"
	"github.com/poiesic/burrow/storage"
	"github.com/poiesic/burrow/storage/badger"
	"github.com/poiesic/burrow/storage/bleve"
	"github.com/poiesic/burrow/subquery"
)

// Engine owns an open passage database and the AI services used to search it.
type Engine struct {
	backend        *badger.Backend
	docRepo        storage.DocumentRepository
	checkpointRepo storage.CheckpointRepository
	vectorStore    *badger.VectorStore
	provider       ai.AIProvider
	logger         *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig  *ai.Config
	provider  ai.AIProvider
	inMemory  bool
	cacheSize int
	logger    *slog.Logger
}

// WithAIConfig sets the configuration of the OpenAI-compatible provider.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = cfg
	}
}

// WithAIProvider uses provider instead of building one from the AI configuration.
// The engine closes it on Close.
func WithAIProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// InMemory keeps the database in memory; the path is ignored.
func InMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithQueryCacheSize sets how many query embeddings the vector store caches.
func WithQueryCacheSize(size int) EngineOption {
	return func(o *engineOptions) {
		o.cacheSize = size
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine opens the database at filePath and prepares its AI services.
func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	// Apply options
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	docRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	checkpointRepo := badger.NewCheckpointRepository(backend)

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			docRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	storeOpts := []badger.VectorStoreOption{badger.WithLogger(options.logger)}
	if options.cacheSize > 0 {
		storeOpts = append(storeOpts, badger.WithQueryCacheSize(options.cacheSize))
	}
	vectorStore, err := badger.NewVectorStore(docRepo, provider.Embedder(), storeOpts...)
	if err != nil {
		provider.Close()
		docRepo.Close()
		backend.Close()
		return nil, err
	}

	return &Engine{
		backend:        backend,
		docRepo:        docRepo,
		checkpointRepo: checkpointRepo,
		vectorStore:    vectorStore,
		provider:       provider,
		logger:         options.logger.With("component", "engine"),
	}, nil
}

// Close releases the AI provider, repositories and database.
func (e *Engine) Close() error {
	// Close AI provider first
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}

	if err := e.docRepo.Close(); err != nil {
		e.logger.Error("error closing document repository", "err", err)
		return err
	}

	// Close backend
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (e *Engine) DocumentRepository() storage.DocumentRepository {
	return e.docRepo
}

func (e *Engine) CheckpointRepository() storage.CheckpointRepository {
	return e.checkpointRepo
}

// VectorStore returns the embedding-backed passage store.
func (e *Engine) VectorStore() *badger.VectorStore {
	return e.vectorStore
}

// NewRetriever creates a retriever over the vector store. Unless opts override
// it, sub-queries are written by the provider's text generator with a
// heuristic fallback.
func (e *Engine) NewRetriever(cfg retriever.Config, opts ...retriever.Option) (*retriever.Retriever, error) {
	return e.newRetriever(e.vectorStore, cfg, opts...)
}

// NewKeywordRetriever indexes every stored passage in an in-memory keyword
// index and returns a retriever over it. The caller must close the returned store.
func (e *Engine) NewKeywordRetriever(ctx context.Context, cfg retriever.Config, opts ...retriever.Option) (*retriever.Retriever, *bleve.KeywordStore, error) {
	store, err := bleve.NewKeywordStore(bleve.WithLogger(e.logger))
	if err != nil {
		return nil, nil, err
	}
	indexed, err := store.IndexRepository(ctx, e.docRepo)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	e.logger.Debug("built keyword index", "passages", indexed)

	r, err := e.newRetriever(store, cfg, opts...)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return r, store, nil
}

func (e *Engine) newRetriever(store retriever.PassageStore, cfg retriever.Config, opts ...retriever.Option) (*retriever.Retriever, error) {
	generator, err := subquery.NewDefaultGenerator(e.provider.TextGenerator(), subquery.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	defaults := []retriever.Option{
		retriever.WithLogger(e.logger),
		retriever.WithSubQueryGenerator(generator),
	}
	return retriever.NewRetriever(store, cfg, append(defaults, opts...)...)
}

// NewIngestionPipeline creates a pipeline that stores passages in this engine.
// Embedding progress is checkpointed.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	defaults := []ingestion.Option{
		ingestion.WithLogger(e.logger),
		ingestion.WithCheckpointRepository(e.checkpointRepo),
	}
	return ingestion.NewPipeline(e.docRepo, e.provider, append(defaults, opts...)...)
}

// NewReembedder creates a reembedder for every stored passage, reporting progress to w.
func (e *Engine) NewReembedder(cfg *reembed.Config, w io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(e.docRepo, e.checkpointRepo, e.provider.Embedder(), cfg, w)
}

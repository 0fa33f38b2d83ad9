package badger

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/poiesic/burrow/ai"
	"github.com/poiesic/burrow/core"
	"github.com/poiesic/burrow/storage"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

const defaultQueryCacheSize = 1024

// VectorStore adapts a DocumentRepository to the langchaingo vectorstores.VectorStore
// interface. Searches embed the query, scan stored vectors by cosine similarity and
// report scores mapped onto [0,1] as (cosine+1)/2.
type VectorStore struct {
	repo     storage.DocumentRepository
	embedder ai.Embedder
	cache    *lru.Cache[core.ID, []float32]
	logger   *slog.Logger
}

var _ vectorstores.VectorStore = (*VectorStore)(nil)

// VectorStoreOption configures a VectorStore.
type VectorStoreOption func(*vectorStoreOptions) error

type vectorStoreOptions struct {
	cacheSize int
	logger    *slog.Logger
}

// WithQueryCacheSize sets how many query embeddings are kept in memory.
// Default is 1024.
func WithQueryCacheSize(size int) VectorStoreOption {
	return func(o *vectorStoreOptions) error {
		if size <= 0 {
			return fmt.Errorf("query cache size must be positive, got %d", size)
		}
		o.cacheSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) VectorStoreOption {
	return func(o *vectorStoreOptions) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewVectorStore creates a vector store over repo using embedder for queries and new documents.
func NewVectorStore(repo storage.DocumentRepository, embedder ai.Embedder, opts ...VectorStoreOption) (*VectorStore, error) {
	if repo == nil {
		return nil, storage.ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, storage.ErrEmbedderRequired
	}

	options := vectorStoreOptions{
		cacheSize: defaultQueryCacheSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, err
		}
	}

	cache, err := lru.New[core.ID, []float32](options.cacheSize)
	if err != nil {
		return nil, err
	}

	return &VectorStore{
		repo:     repo,
		embedder: embedder,
		cache:    cache,
		logger:   options.logger.With("component", "vectorstore"),
	}, nil
}

// AddDocuments embeds and stores docs, returning the new document IDs.
func (s *VectorStore) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := vectorstores.Options{}
	for _, opt := range options {
		opt(&opts)
	}

	pending := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		if opts.Deduplicater != nil && opts.Deduplicater(ctx, doc) {
			continue
		}
		pending = append(pending, doc)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	texts := make([]string, len(pending))
	for i, doc := range pending {
		texts[i] = doc.PageContent
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(vectors) != len(pending) {
		return nil, fmt.Errorf("embedding result mismatch: expected %d, received %d", len(pending), len(vectors))
	}

	records := make([]*core.Document, len(pending))
	for i, doc := range pending {
		records[i] = storage.FromSchemaDocument(doc)
		records[i].Vector = core.NormalizeVector(vectors[i])
	}

	stored, err := s.repo.AddDocuments(ctx, records...)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(stored))
	for i, doc := range stored {
		ids[i] = storage.FormatID(doc.Id)
	}
	s.logger.Debug("added documents", "count", len(ids))
	return ids, nil
}

// SimilaritySearch returns up to numDocuments stored documents most similar to query.
// Supports the ScoreThreshold option (on the [0,1] scale) and a map[string]string
// Filters option matched exactly against document metadata.
func (s *VectorStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	if numDocuments <= 0 {
		return nil, nil
	}

	opts := vectorstores.Options{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.ScoreThreshold < 0 || opts.ScoreThreshold > 1 {
		return nil, fmt.Errorf("%w: score threshold %v outside [0,1]", storage.ErrInvalidQuery, opts.ScoreThreshold)
	}
	filters, err := metadataFilters(opts.Filters)
	if err != nil {
		return nil, err
	}

	vector, err := s.queryVector(ctx, query)
	if err != nil {
		return nil, err
	}

	// Scores are reported as (cosine+1)/2, so a threshold t keeps cosine >= 2t-1
	minSimilarity := float32(-math.MaxFloat32)
	if opts.ScoreThreshold > 0 {
		minSimilarity = 2*opts.ScoreThreshold - 1
	}
	limit := numDocuments
	if len(filters) > 0 {
		limit = -1
	}

	matches, err := s.repo.FindSimilar(ctx, vector, minSimilarity, limit)
	if err != nil {
		return nil, err
	}

	results := make([]schema.Document, 0, min(len(matches), numDocuments))
	for _, match := range matches {
		if !matchesFilters(match.Document, filters) {
			continue
		}
		results = append(results, storage.ToSchemaDocument(match.Document, core.UnitScore(match.Score)))
		if len(results) == numDocuments {
			break
		}
	}

	s.logger.Debug("similarity search", "query", query, "k", numDocuments, "results", len(results))
	return results, nil
}

// queryVector returns the unit-length embedding of query, consulting the cache first.
func (s *VectorStore) queryVector(ctx context.Context, query string) ([]float32, error) {
	key := core.IDFromContent(query)
	if vector, ok := s.cache.Get(key); ok {
		return vector, nil
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	vector = core.NormalizeVector(vector)
	s.cache.Add(key, vector)
	return vector, nil
}

// CachedQueries returns the number of query embeddings currently cached.
func (s *VectorStore) CachedQueries() int {
	return s.cache.Len()
}

func metadataFilters(filters any) (map[string]string, error) {
	switch f := filters.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return f, nil
	case map[string]any:
		out := make(map[string]string, len(f))
		for k, v := range f {
			out[k] = fmt.Sprint(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported filter type %T", storage.ErrInvalidQuery, filters)
	}
}

func matchesFilters(doc *core.Document, filters map[string]string) bool {
	for k, want := range filters {
		got, ok := doc.Metadata[k]
		if k == storage.MetadataSource {
			got, ok = doc.Source, doc.Source != ""
		}
		if !ok || got != want {
			return false
		}
	}
	return true
}

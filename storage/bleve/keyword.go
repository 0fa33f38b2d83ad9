// Package bleve provides a keyword passage store backed by an in-memory bleve index.
//
// KeywordStore satisfies the langchaingo vectorstores.VectorStore interface, so it
// can stand in for the embedding store wherever the retriever expects a passage
// store. Scores are bleve relevance scores squashed onto [0,1) as s/(1+s).
package bleve

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/poiesic/burrow/core"
	"github.com/poiesic/burrow/storage"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

const (
	contentField = "content"

	// listPageSize is the page size used when indexing a document repository.
	listPageSize = 256
)

// indexedPassage is the shape stored in the bleve index.
type indexedPassage struct {
	Content string `json:"content"`
}

// KeywordStore is a full-text passage store.
type KeywordStore struct {
	index  bleve.Index
	mu     sync.RWMutex
	docs   map[string]*core.Document
	nextID uint64
	logger *slog.Logger
}

var _ vectorstores.VectorStore = (*KeywordStore)(nil)

// Option configures a KeywordStore.
type Option func(*KeywordStore) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *KeywordStore) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewKeywordStore creates an empty in-memory keyword store.
func NewKeywordStore(opts ...Option) (*KeywordStore, error) {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("creating keyword index: %w", err)
	}

	s := &KeywordStore{
		index:  index,
		docs:   make(map[string]*core.Document),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			index.Close()
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "keyword-store")
	return s, nil
}

// Close releases the index.
func (s *KeywordStore) Close() error {
	return s.index.Close()
}

// IndexRepository indexes every document stored in repo.
// Returns the number of documents indexed.
func (s *KeywordStore) IndexRepository(ctx context.Context, repo storage.DocumentRepository) (int, error) {
	if repo == nil {
		return 0, storage.ErrRepositoryRequired
	}

	total := 0
	var after core.ID
	for {
		page, err := repo.ListDocuments(ctx, after, listPageSize)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			break
		}
		for _, doc := range page {
			doc.Vector = nil
		}
		if err := s.indexDocuments(page); err != nil {
			return total, err
		}
		total += len(page)
		after = page[len(page)-1].Id
	}

	s.logger.Info("indexed repository", "documents", total)
	return total, nil
}

// AddDocuments indexes docs and returns their keys.
// Documents carrying an "id" metadata value keep it as their key.
func (s *KeywordStore) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := vectorstores.Options{}
	for _, opt := range options {
		opt(&opts)
	}

	records := make([]*core.Document, 0, len(docs))
	for _, doc := range docs {
		if opts.Deduplicater != nil && opts.Deduplicater(ctx, doc) {
			continue
		}
		record := storage.FromSchemaDocument(doc)
		if err := core.ValidateDocument(record); err != nil {
			return nil, err
		}
		if raw, ok := record.Metadata[storage.MetadataID]; ok {
			id, err := storage.ParseID(raw)
			if err != nil {
				return nil, err
			}
			record.Id = id
			delete(record.Metadata, storage.MetadataID)
		}
		records = append(records, record)
	}

	if err := s.indexDocuments(records); err != nil {
		return nil, err
	}

	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = storage.FormatID(record.Id)
	}
	return ids, nil
}

func (s *KeywordStore) indexDocuments(records []*core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.index.NewBatch()
	for _, record := range records {
		if record.Id == 0 {
			s.nextID++
			record.Id = core.ID(s.nextID)
		}
		if uint64(record.Id) > s.nextID {
			s.nextID = uint64(record.Id)
		}
		key := storage.FormatID(record.Id)
		if err := batch.Index(key, indexedPassage{Content: record.Content}); err != nil {
			return err
		}
		s.docs[key] = record
	}
	return s.index.Batch(batch)
}

// SimilaritySearch returns up to numDocuments passages matching the words of query.
// The ScoreThreshold option applies to the squashed [0,1) score.
func (s *KeywordStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
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
	if opts.Filters != nil {
		return nil, fmt.Errorf("%w: keyword store does not support filters", storage.ErrInvalidQuery)
	}

	match := bleve.NewMatchQuery(query)
	match.SetField(contentField)
	request := bleve.NewSearchRequestOptions(match, numDocuments, 0, false)

	result, err := s.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]schema.Document, 0, len(result.Hits))
	for _, hit := range result.Hits {
		record, ok := s.docs[hit.ID]
		if !ok {
			continue
		}
		score := SquashScore(hit.Score)
		if score < float64(opts.ScoreThreshold) {
			continue
		}
		docs = append(docs, storage.ToSchemaDocument(record, score))
	}

	s.logger.Debug("keyword search", "query", query, "k", numDocuments, "hits", result.Total, "results", len(docs))
	return docs, nil
}

// Len returns the number of indexed documents.
func (s *KeywordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// SquashScore maps a non-negative relevance score onto [0,1).
func SquashScore(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return score / (1 + score)
}

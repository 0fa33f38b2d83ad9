package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/burrow/core"
	"github.com/poiesic/burrow/rerank"
	"github.com/poiesic/burrow/storage"
	"github.com/poiesic/burrow/subquery"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// PassageStore is the similarity search backend. Any langchaingo
// vectorstores.VectorStore satisfies it.
type PassageStore interface {
	SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error)
}

// SubQueryGenerator produces follow-up queries for a low-confidence search.
// It must not fail; an empty result simply ends the expansion.
type SubQueryGenerator interface {
	Generate(ctx context.Context, query string, sample []core.Passage, n int) []string
}


// Retriever runs recursive retrievals against a passage store.
// It holds no per-call state and is safe for concurrent use.
type Retriever struct {
	store         PassageStore
	config        Config
	generator     SubQueryGenerator
	reranker      *rerank.Reranker
	crossEncoder  rerank.Scorer
	searchOptions []vectorstores.Option
	monitor       Monitor
	logger        *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithSubQueryGenerator sets the follow-up query generator.
// Default is a heuristic-only subquery.Generator.
func WithSubQueryGenerator(generator SubQueryGenerator) Option {
	return func(r *Retriever) error {
		if generator == nil {
			return errors.New("sub-query generator must not be nil")
		}
		r.generator = generator
		return nil
	}
}

// WithCrossEncoder sets the scorer used when the rerank method is cross_encoder.
func WithCrossEncoder(scorer rerank.Scorer) Option {
	return func(r *Retriever) error {
		r.crossEncoder = scorer
		return nil
	}
}

// WithReranker replaces the reranker chosen from the rerank method.
// It is ignored when the rerank method is none.
func WithReranker(reranker *rerank.Reranker) Option {
	return func(r *Retriever) error {
		r.reranker = reranker
		return nil
	}
}

// WithSearchOptions sets options passed to every passage store search,
// for example vectorstores.WithScoreThreshold.
func WithSearchOptions(opts ...vectorstores.Option) Option {
	return func(r *Retriever) error {
		r.searchOptions = opts
		return nil
	}
}

// WithMonitor sets a monitor notified of every retrieval.
func WithMonitor(monitor Monitor) Option {
	return func(r *Retriever) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		r.monitor = monitor
		return nil
	}
}

// NewRetriever creates a retriever over store using cfg.
func NewRetriever(store PassageStore, cfg Config, opts ...Option) (*Retriever, error) {
	if store == nil {
		return nil, ErrPassageStoreRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Retriever{
		store:   store,
		config:  cfg,
		monitor: &noopMonitor{},
		logger:  slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retriever")

	if r.generator == nil {
		generator, err := subquery.NewDefaultGenerator(nil, subquery.WithLogger(r.logger))
		if err != nil {
			return nil, err
		}
		r.generator = generator
	}

	if err := r.configureReranker(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Retriever) configureReranker() error {
	switch r.config.RerankMethod {
	case RerankNone:
		r.reranker = nil
		return nil
	case RerankCosine:
		if r.reranker != nil {
			return nil
		}
		reranker, err := rerank.NewReranker(
			[]rerank.Scorer{rerank.NewCosineScorer(rerank.DefaultCosineFeatures)},
			rerank.WithLogger(r.logger),
		)
		if err != nil {
			return err
		}
		r.reranker = reranker
		return nil
	case RerankCrossEncoder:
		if r.reranker != nil {
			return nil
		}
		if r.crossEncoder == nil {
			return ErrCrossEncoderRequired
		}
		reranker, err := rerank.NewReranker([]rerank.Scorer{r.crossEncoder}, rerank.WithLogger(r.logger))
		if err != nil {
			return err
		}
		r.reranker = reranker
		return nil
	default:
		return fmt.Errorf("%w: rerank method %q", ErrInvalidConfig, r.config.RerankMethod)
	}
}

// Config returns the retriever's configuration.
func (r *Retriever) Config() Config {
	return r.config
}

// callState holds the budgets and attempted queries of one retrieval.
type callState struct {
	queries   int
	documents int
	attempted map[core.ID]struct{}
}

func newCallState() *callState {
	return &callState{attempted: make(map[core.ID]struct{})}
}

// budgetStatus reports which budget is exhausted, or "" if both have headroom.
func (s *callState) budgetStatus(cfg Config) core.Status {
	if s.queries >= cfg.MaxTotalQueries {
		return core.StatusMaxQueriesReached
	}
	if s.documents >= cfg.MaxTotalDocuments {
		return core.StatusMaxDocumentsReached
	}
	return ""
}

// Retrieve returns the most relevant passages for query, at most FinalK of them.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]core.Passage, error) {
	passages, _, err := r.RetrieveWithReport(ctx, query)
	return passages, err
}

// RetrieveWithReport is Retrieve plus a report describing how the passages were found.
// Store and generator failures are logged and never abort the call. If ctx is
// cancelled the result is empty, the report's root status is "cancelled" and
// the context error is returned.
func (r *Retriever) RetrieveWithReport(ctx context.Context, query string) ([]core.Passage, *core.Report, error) {
	start := time.Now()
	state := newCallState()
	r.monitor.Start(query, r.config)

	collected, tree := r.search(ctx, state, query, 1, query)

	if err := ctx.Err(); err != nil {
		tree.Status = core.StatusCancelled
		report := buildReport(nil, nil, tree, r.mergeInfo(), state, time.Since(start))
		r.monitor.Finish(nil, report)
		r.logger.Info("retrieval cancelled", "query", query, "queries", state.queries, "err", err)
		return []core.Passage{}, report, err
	}

	merged, info := r.merge(ctx, collected)
	r.monitor.AfterMerge(len(collected), info)

	final := merged
	if len(final) > r.config.FinalK {
		final = final[:r.config.FinalK]
	}

	report := buildReport(collected, final, tree, info, state, time.Since(start))
	r.monitor.Finish(final, report)
	r.logger.Debug("retrieval complete",
		"query", query,
		"queries", state.queries,
		"documents", state.documents,
		"collected", len(collected),
		"returned", len(final),
		"depth", report.RecursionDepthUsed,
		"elapsed", report.Elapsed)
	return final, report, nil
}

func (r *Retriever) mergeInfo() core.MergeInfo {
	return core.MergeInfo{Strategy: r.config.MergeStrategy, RerankMethod: string(r.config.RerankMethod)}
}

// search runs one node of the recursion. parent is the query recorded on the
// retrieval path of the passages this node finds.
func (r *Retriever) search(ctx context.Context, state *callState, query string, depth int, parent string) ([]core.Passage, *core.TreeNode) {
	node := &core.TreeNode{Depth: depth, Query: query, Children: []*core.TreeNode{}}

	if ctx.Err() != nil {
		node.Status = core.StatusCancelled
		return nil, node
	}

	if status := state.budgetStatus(r.config); status != "" {
		node.Status = status
		r.monitor.Skipped(depth, query, status)
		return nil, node
	}
	key := core.IDFromContent(query)
	if _, seen := state.attempted[key]; seen {
		node.Status = core.StatusDuplicateQuery
		r.monitor.Skipped(depth, query, node.Status)
		return nil, node
	}

	state.attempted[key] = struct{}{}
	state.queries++

	if depth > r.config.MaxRecursionDepth {
		node.Status = core.StatusMaxDepthReached
		r.monitor.Skipped(depth, query, node.Status)
		return nil, node
	}

	k := r.config.IntermediateK
	if depth == 1 {
		k = r.config.InitialK
	}

	docs, err := r.store.SimilaritySearch(ctx, query, k, r.searchOptions...)
	if err != nil {
		if ctx.Err() != nil {
			node.Status = core.StatusCancelled
			return nil, node
		}
		r.logger.Warn("passage search failed", "query", query, "depth", depth, "err", err)
		r.monitor.AfterSearch(depth, query, 0, 0, err)
		node.Status = core.StatusSearchFailed
		return nil, node
	}
	if len(docs) > k {
		docs = docs[:k]
	}
	state.documents += len(docs)

	if len(docs) == 0 {
		r.monitor.AfterSearch(depth, query, 0, 0, nil)
		node.Status = core.StatusNoResults
		return nil, node
	}

	passages := make([]core.Passage, len(docs))
	var total float64
	for i, doc := range docs {
		passages[i] = toPassage(doc, i, depth, parent)
		total += passages[i].RelevanceScore
	}
	avg := total / float64(len(passages))

	node.Results = len(passages)
	node.AvgScore = avg
	node.Status = core.StatusOK
	r.monitor.AfterSearch(depth, query, len(passages), avg, nil)

	if !r.config.EnableRecursion || depth >= r.config.MaxRecursionDepth || avg >= r.config.MinConfidenceScore {
		return passages, node
	}
	if status := state.budgetStatus(r.config); status != "" {
		node.Status = status
		r.monitor.Skipped(depth, query, status)
		return passages, node
	}

	subQueries := r.generator.Generate(ctx, query, passages, r.config.NumSubQuestions)
	if len(subQueries) == 0 {
		return passages, node
	}
	node.Status = core.StatusExpanded
	r.monitor.Expanded(depth, query, subQueries)
	r.logger.Debug("expanding low-confidence search",
		"query", query, "depth", depth, "avg_score", avg, "sub_queries", len(subQueries))

	// Siblings run in order so each sees the budget the previous one left.
	for _, sub := range subQueries {
		found, child := r.search(ctx, state, sub, depth+1, query)
		passages = append(passages, found...)
		node.Children = append(node.Children, child)
	}

	return passages, node
}

// toPassage wraps the document at rank in a result batch.
func toPassage(doc schema.Document, rank, depth int, parent string) core.Passage {
	metadata := make(map[string]any, len(doc.Metadata))
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	return core.Passage{
		Content:        doc.PageContent,
		Metadata:       metadata,
		RelevanceScore: relevanceScore(doc, rank),
		RetrievalDepth: depth,
		RetrievalPath:  []string{parent},
	}
}

// relevanceScore reads the relevance_score metadata, then the document score,
// and otherwise falls back to a default that decays with rank.
func relevanceScore(doc schema.Document, rank int) float64 {
	if v, ok := doc.Metadata[storage.MetadataRelevanceScore]; ok {
		if score, ok := numeric(v); ok {
			return core.ClampScore(score)
		}
	}
	if doc.Score > 0 {
		return core.ClampScore(float64(doc.Score))
	}
	return DefaultScore(rank)
}

// DefaultScore is the relevance assigned to an unscored passage at rank (0-based).
func DefaultScore(rank int) float64 {
	return core.ClampScore(0.5 + float64(10-rank)*0.05)
}

// numeric converts a metadata value to a finite float.
func numeric(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(n), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

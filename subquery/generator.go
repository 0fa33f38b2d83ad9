package subquery

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/burrow/ai"
	"github.com/poiesic/burrow/core"
)

// Generator produces follow-up queries by trying strategies in order.
type Generator struct {
	strategies []Strategy
	logger     *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// NewGenerator creates a generator that tries strategies in the given order.
func NewGenerator(strategies []Strategy, opts ...Option) (*Generator, error) {
	if len(strategies) == 0 {
		return nil, ErrNoStrategies
	}
	g := &Generator{
		strategies: strategies,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	g.logger = g.logger.With("component", "subquery")
	return g, nil
}

// NewDefaultGenerator chains an LLM strategy over textGenerator with the heuristic fallback.
// A nil textGenerator yields a heuristic-only generator.
func NewDefaultGenerator(textGenerator ai.TextGenerator, opts ...Option) (*Generator, error) {
	strategies := make([]Strategy, 0, 2)
	if textGenerator != nil {
		llm, err := NewLLMStrategy(textGenerator)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, llm)
	}
	strategies = append(strategies, HeuristicStrategy{})
	return NewGenerator(strategies, opts...)
}

// Generate returns up to n distinct, non-empty follow-up queries for query.
// Strategy failures are logged and the next strategy is tried; when every
// strategy fails the result is empty. The original query is never returned.
func (g *Generator) Generate(ctx context.Context, query string, sample []core.Passage, n int) []string {
	if n <= 0 {
		return nil
	}
	for _, strategy := range g.strategies {
		if ctx.Err() != nil {
			return nil
		}
		queries, err := strategy.Generate(ctx, query, sample, n)
		if err != nil {
			g.logger.Warn("sub-query strategy failed, trying next", "strategy", strategy.Name(), "err", err)
			continue
		}
		queries = clean(query, queries, n)
		if len(queries) == 0 {
			g.logger.Debug("sub-query strategy produced nothing", "strategy", strategy.Name())
			continue
		}
		g.logger.Debug("generated sub-queries", "strategy", strategy.Name(), "count", len(queries))
		return queries
	}
	return nil
}

func clean(query string, queries []string, n int) []string {
	seen := map[string]struct{}{strings.TrimSpace(query): {}}
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
		if len(out) == n {
			break
		}
	}
	return out
}

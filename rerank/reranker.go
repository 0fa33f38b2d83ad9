package rerank

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/burrow/core"
)

// Default blend weights for previous and new scores.
const (
	DefaultOldWeight = 0.4
	DefaultNewWeight = 0.6
)

// Reranker blends scorer output into passage relevance scores.
type Reranker struct {
	scorers   []Scorer
	oldWeight float64
	newWeight float64
	logger    *slog.Logger
}

// Option configures a Reranker.
type Option func(*Reranker) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reranker) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "reranker")
		return nil
	}
}

// WithWeights overrides the blend weights.
func WithWeights(oldWeight, newWeight float64) Option {
	return func(r *Reranker) error {
		if oldWeight < 0 || newWeight < 0 || oldWeight+newWeight == 0 {
			return ErrInvalidWeights
		}
		r.oldWeight = oldWeight
		r.newWeight = newWeight
		return nil
	}
}

// NewReranker creates a reranker that tries scorers in order.
func NewReranker(scorers []Scorer, opts ...Option) (*Reranker, error) {
	active := make([]Scorer, 0, len(scorers))
	for _, s := range scorers {
		if s != nil {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return nil, ErrNoScorers
	}

	r := &Reranker{
		scorers:   active,
		oldWeight: DefaultOldWeight,
		newWeight: DefaultNewWeight,
		logger:    slog.Default().With("component", "reranker"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Rerank returns a copy of passages with blended scores.
// Each passage is scored against the first query on its retrieval path.
// If every scorer fails, the input scores are kept.
func (r *Reranker) Rerank(ctx context.Context, passages []core.Passage) []core.Passage {
	out := make([]core.Passage, len(passages))
	copy(out, passages)
	if len(out) == 0 {
		return out
	}

	pairs := make([]Pair, len(out))
	for i, p := range out {
		pairs[i] = Pair{Query: p.Query(), Passage: p.Content}
	}

	for _, scorer := range r.scorers {
		scores, err := r.score(ctx, scorer, pairs)
		if err != nil {
			r.logger.Warn("scorer failed", "scorer", scorer.Name(), "err", err)
			continue
		}
		for i := range out {
			out[i].RelevanceScore = core.ClampScore(
				Blend(out[i].RelevanceScore, scores[i], r.oldWeight, r.newWeight))
		}
		r.logger.Debug("reranked passages", "scorer", scorer.Name(), "passages", len(out))
		return out
	}
	return out
}

func (r *Reranker) score(ctx context.Context, scorer Scorer, pairs []Pair) ([]float64, error) {
	scores, err := scorer.Score(ctx, pairs)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(pairs) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrScoreCount, len(scores), len(pairs))
	}
	return scores, nil
}

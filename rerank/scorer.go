package rerank

import (
	"context"
	"math"
)

// Pair is a query and a passage text to be scored together.
type Pair struct {
	Query   string
	Passage string
}

// Scorer assigns a relevance score in [0,1] to every pair.
// Implementations must return exactly one score per pair, in order.
type Scorer interface {
	Name() string
	Score(ctx context.Context, pairs []Pair) ([]float64, error)
}

// Logistic squashes an unbounded score into (0,1).
func Logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Blend combines a previous score with a new one using the given weights.
func Blend(old, score, oldWeight, newWeight float64) float64 {
	return oldWeight*old + newWeight*score
}

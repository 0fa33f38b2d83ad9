package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogistic(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0.5},
		{100, 1},
		{-100, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Logistic(tt.in), 1e-9)
	}
	assert.Greater(t, Logistic(2), Logistic(1))
}

func TestBlend(t *testing.T) {
	assert.InDelta(t, 0.4*0.5+0.6*1.0, Blend(0.5, 1.0, 0.4, 0.6), 1e-12)
	assert.InDelta(t, 0.3, Blend(0.3, 0.9, 1, 0), 1e-12)
}

func TestCosineScorer(t *testing.T) {
	ctx := context.Background()
	scorer := NewCosineScorer(0)
	assert.Equal(t, "cosine", scorer.Name())

	t.Run("exact match scores highest", func(t *testing.T) {
		scores, err := scorer.Score(ctx, []Pair{
			{Query: "fix crash", Passage: "fix crash"},
			{Query: "fix crash", Passage: "quarterly budget review"},
		})
		require.NoError(t, err)
		require.Len(t, scores, 2)
		assert.InDelta(t, 1.0, scores[0], 1e-9)
		assert.Less(t, scores[1], scores[0])
		for _, s := range scores {
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0+1e-9)
		}
	})

	t.Run("each pair uses its own query", func(t *testing.T) {
		scores, err := scorer.Score(ctx, []Pair{
			{Query: "aaa", Passage: "aaa"},
			{Query: "zzz", Passage: "aaa"},
		})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, scores[0], 1e-9)
		assert.InDelta(t, 0.0, scores[1], 1e-9)
	})

	t.Run("empty input", func(t *testing.T) {
		scores, err := scorer.Score(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, scores)
	})

	t.Run("empty text fails", func(t *testing.T) {
		_, err := scorer.Score(ctx, []Pair{{}})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := scorer.Score(cctx, []Pair{{Query: "a", Passage: "a"}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

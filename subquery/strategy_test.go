package subquery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/burrow/ai/mock"
	"github.com/poiesic/burrow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicStrategy(t *testing.T) {
	tests := []struct {
		name  string
		query string
		n     int
		want  []string
	}{
		{
			name:  "multi-word query",
			query: "fix crash on startup",
			n:     2,
			want: []string{
				"What are the specific details of fix crash on startup?",
				"crash on startup",
			},
		},
		{
			name:  "single word query",
			query: "badger",
			n:     3,
			want:  []string{"What are the specific details of badger?"},
		},
		{
			name:  "capped at n",
			query: "fix crash",
			n:     1,
			want:  []string{"What are the specific details of fix crash?"},
		},
		{
			name:  "zero requested",
			query: "fix crash",
			n:     0,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HeuristicStrategy{}.Generate(context.Background(), tt.query, nil, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLLMStrategy_RequiresGenerator(t *testing.T) {
	_, err := NewLLMStrategy(nil)
	assert.ErrorIs(t, err, ErrTextGeneratorRequired)
}

func TestLLMStrategy_ParsesLines(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateTextFunc = func(_ context.Context, _ string) (string, error) {
		return "1. How is the crash reproduced?\n\n- ok\n2) Which versions are affected?\n* What does the stack trace show?", nil
	}
	strategy, err := NewLLMStrategy(gen)
	require.NoError(t, err)

	got, err := strategy.Generate(context.Background(), "fix crash", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"How is the crash reproduced?",
		"Which versions are affected?",
	}, got)
}

func TestLLMStrategy_PromptIncludesExcerpts(t *testing.T) {
	gen := mock.NewMockGenerator("What triggers the panic in the loader?")
	strategy, err := NewLLMStrategy(gen)
	require.NoError(t, err)

	long := strings.Repeat("x", 500)
	sample := []core.Passage{
		{Content: long},
		{Content: "second passage"},
		{Content: "third passage"},
		{Content: "fourth passage"},
	}
	_, err = strategy.Generate(context.Background(), "fix crash", sample, 2)
	require.NoError(t, err)

	prompt := gen.LastPrompt()
	assert.Contains(t, prompt, "Original query: fix crash")
	assert.Contains(t, prompt, strings.Repeat("x", excerptLength)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("x", excerptLength+1))
	assert.Contains(t, prompt, "third passage")
	assert.NotContains(t, prompt, "fourth passage")
	assert.Contains(t, prompt, "Write 2 queries")
}

func TestLLMStrategy_EmptyAnswerIsFailure(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateTextFunc = func(_ context.Context, _ string) (string, error) {
		return "  \nok\n", nil
	}
	strategy, err := NewLLMStrategy(gen)
	require.NoError(t, err)

	_, err = strategy.Generate(context.Background(), "fix crash", nil, 2)
	assert.ErrorIs(t, err, ErrNoQueries)
}

func TestLLMStrategy_PropagatesError(t *testing.T) {
	boom := errors.New("service unavailable")
	gen := mock.NewMockGenerator()
	gen.GenerateTextFunc = func(_ context.Context, _ string) (string, error) {
		return "", boom
	}
	strategy, err := NewLLMStrategy(gen)
	require.NoError(t, err)

	_, err = strategy.Generate(context.Background(), "fix crash", nil, 2)
	assert.ErrorIs(t, err, boom)
}

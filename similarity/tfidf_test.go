package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Fix CRASH", "fix crash"},
		{"collapses whitespace", "a  \t\n b", "a b"},
		{"keeps edges", " a ", " a "},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preprocess(tt.input))
		})
	}
}

func TestNgramCounts(t *testing.T) {
	counts := ngramCounts("abab")
	assert.Equal(t, map[string]int{"a": 2, "b": 2, "ab": 2, "ba": 1}, counts)

	assert.Empty(t, ngramCounts(""))
	assert.Equal(t, map[string]int{"é": 1}, ngramCounts("É"))
}

func TestVectorizer_FitTransform(t *testing.T) {
	t.Run("rows are unit length", func(t *testing.T) {
		vecs, err := NewVectorizer().FitTransform([]string{"fix crash", "memory leak in parser"})
		require.NoError(t, err)
		require.Len(t, vecs, 2)
		for _, v := range vecs {
			assert.InDelta(t, 1.0, norm(v), 1e-9)
		}
	})

	t.Run("smooth idf", func(t *testing.T) {
		v := NewVectorizer()
		require.NoError(t, v.Fit([]string{"ab", "a"}))
		// "a" appears in both docs, "b" and "ab" in one.
		assert.InDelta(t, 1.0, v.idf[v.vocabulary["a"]], 1e-9)
		assert.InDelta(t, math.Log(3.0/2.0)+1, v.idf[v.vocabulary["b"]], 1e-9)
	})

	t.Run("max features keeps most frequent", func(t *testing.T) {
		v := NewVectorizer(WithMaxFeatures(2))
		require.NoError(t, v.Fit([]string{"aaab", "aac"}))
		assert.Equal(t, 2, v.Features())
		assert.Contains(t, v.vocabulary, "a")
		assert.Contains(t, v.vocabulary, "aa")
	})

	t.Run("empty vocabulary", func(t *testing.T) {
		_, err := NewVectorizer().FitTransform([]string{"", ""})
		assert.ErrorIs(t, err, ErrEmptyVocabulary)
	})

	t.Run("transform before fit", func(t *testing.T) {
		_, err := NewVectorizer().Transform([]string{"x"})
		assert.ErrorIs(t, err, ErrNotFitted)
	})

	t.Run("unknown terms are ignored", func(t *testing.T) {
		v := NewVectorizer()
		require.NoError(t, v.Fit([]string{"abc"}))
		vecs, err := v.Transform([]string{"xyz"})
		require.NoError(t, err)
		assert.Empty(t, vecs[0])
	})
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector
		want float64
	}{
		{"identical", Vector{0: 1, 1: 1}, Vector{0: 1, 1: 1}, 1},
		{"orthogonal", Vector{0: 1}, Vector{1: 1}, 0},
		{"empty", Vector{}, Vector{0: 1}, 0},
		{"scaled", Vector{0: 2, 1: 0}, Vector{0: 5}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestPairwiseCosine(t *testing.T) {
	vecs, err := NewVectorizer().FitTransform([]string{"same text", "same text", "zzz"})
	require.NoError(t, err)

	m := PairwiseCosine(vecs)
	assert.InDelta(t, 1.0, m[0][1], 1e-9)
	assert.InDelta(t, m[0][2], m[2][0], 1e-12)
	assert.InDelta(t, 0.0, m[0][2], 1e-9)
}

func TestSimilarity(t *testing.T) {
	s, err := Similarity("Fix the crash", "fix   the CRASH")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s, 1e-9)

	s, err = Similarity("database migration", "painting landscapes")
	require.NoError(t, err)
	assert.Less(t, s, 0.85)
}

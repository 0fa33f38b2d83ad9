package similarity

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/poiesic/burrow/core"
)

// Deduplicate keeps the highest-scoring passage of every group of near-duplicates.
//
// Passages are visited in descending relevance order (ties keep input order).
// Each unsuppressed passage is kept and every other passage whose similarity
// to it exceeds threshold is suppressed. Similarity is measured pair by pair,
// so the score of two passages never depends on the rest of the input and a
// second pass over the result removes nothing. Inputs with fewer than two
// passages are returned unchanged, as is input whose contents are all empty.
func Deduplicate(passages []core.Passage, threshold float64, logger *slog.Logger) []core.Passage {
	if len(passages) <= 1 {
		return passages
	}
	if logger == nil {
		logger = slog.Default()
	}

	contents := make([]string, len(passages))
	for i, p := range passages {
		contents[i] = p.Content
	}
	if !slices.ContainsFunc(contents, func(s string) bool { return s != "" }) {
		logger.Warn("deduplication skipped", "passages", len(passages), "err", ErrEmptyVocabulary)
		return passages
	}
	sim := pairSimilarities(contents)

	order := make([]int, len(passages))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(passages[b].RelevanceScore, passages[a].RelevanceScore)
	})

	suppressed := make([]bool, len(passages))
	kept := make([]core.Passage, 0, len(passages))
	for _, idx := range order {
		if suppressed[idx] {
			continue
		}
		kept = append(kept, passages[idx])
		for other := range passages {
			if other != idx && sim[idx][other] > threshold {
				suppressed[other] = true
			}
		}
	}

	if removed := len(passages) - len(kept); removed > 0 {
		logger.Debug("removed duplicate passages", "removed", removed, "kept", len(kept))
	}
	return kept
}

// pairSimilarities returns the symmetric matrix of Similarity over contents.
// Each pair is scored with its texts in lexical order so the value of a pair
// is the same whatever positions the texts hold. Pairs without text score 0.
func pairSimilarities(contents []string) [][]float64 {
	type pair struct{ a, b string }
	cache := make(map[pair]float64)

	m := make([][]float64, len(contents))
	for i := range m {
		m[i] = make([]float64, len(contents))
	}
	for i := range contents {
		for j := i + 1; j < len(contents); j++ {
			key := pair{contents[i], contents[j]}
			if key.a > key.b {
				key.a, key.b = key.b, key.a
			}
			s, ok := cache[key]
			if !ok {
				var err error
				if s, err = Similarity(key.a, key.b); err != nil {
					s = 0
				}
				cache[key] = s
			}
			m[i][j] = s
			m[j][i] = s
		}
	}
	return m
}

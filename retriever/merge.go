package retriever

import (
	"cmp"
	"context"
	"slices"

	"github.com/poiesic/burrow/core"
	"github.com/poiesic/burrow/similarity"
)

// merge deduplicates, reranks and sorts the collected passages.
// It does not truncate; the caller applies FinalK.
func (r *Retriever) merge(ctx context.Context, passages []core.Passage) ([]core.Passage, core.MergeInfo) {
	info := core.MergeInfo{
		Strategy:     r.config.MergeStrategy,
		RerankMethod: string(r.config.RerankMethod),
	}

	merged := slices.Clone(passages)
	if len(merged) > 1 {
		merged = similarity.Deduplicate(merged, r.config.DeduplicationThreshold, r.logger)
		info.Deduplicated = len(passages) - len(merged)
	}

	if r.reranker != nil && len(merged) > 1 {
		merged = r.reranker.Rerank(ctx, merged)
	}

	slices.SortStableFunc(merged, func(a, b core.Passage) int {
		return cmp.Compare(b.RelevanceScore, a.RelevanceScore)
	})
	return merged, info
}

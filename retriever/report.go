package retriever

import (
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/burrow/core"
)

// buildReport summarizes a retrieval. collected holds every passage gathered
// before merging; final holds the passages returned to the caller.
func buildReport(collected, final []core.Passage, tree *core.TreeNode, info core.MergeInfo, state *callState, elapsed time.Duration) *core.Report {
	return &core.Report{
		ID:                 uuid.NewString(),
		TotalResults:       len(collected),
		FinalResults:       len(final),
		RecursionDepthUsed: maxDepth(collected),
		Elapsed:            elapsed,
		MergeInfo:          info,
		Tree:               tree,
		QueriesIssued:      state.queries,
		DocumentsCollected: state.documents,
	}
}

// maxDepth returns the deepest retrieval depth among passages, or 1 if there are none.
func maxDepth(passages []core.Passage) int {
	depth := 1
	for _, p := range passages {
		depth = max(depth, p.RetrievalDepth)
	}
	return depth
}

package retriever

import "github.com/poiesic/burrow/core"

// Monitor provides hooks to observe a retrieval.
// Implement this interface to track intermediate steps and results.
// Calls for one retrieval are made sequentially from the calling goroutine.
type Monitor interface {
	Start(query string, cfg Config)
	AfterSearch(depth int, query string, results int, avgScore float64, err error)
	Expanded(depth int, query string, subQueries []string)
	Skipped(depth int, query string, status core.Status)
	AfterMerge(collected int, info core.MergeInfo)
	Finish(passages []core.Passage, report *core.Report)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ Config)                               {}
func (n *noopMonitor) AfterSearch(_ int, _ string, _ int, _ float64, _ error) {}
func (n *noopMonitor) Expanded(_ int, _ string, _ []string)                   {}
func (n *noopMonitor) Skipped(_ int, _ string, _ core.Status)                 {}
func (n *noopMonitor) AfterMerge(_ int, _ core.MergeInfo)                     {}
func (n *noopMonitor) Finish(_ []core.Passage, _ *core.Report)                {}

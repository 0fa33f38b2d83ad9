package retriever

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/poiesic/burrow/core"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// fakeStore records every search and answers with searchFunc.
type fakeStore struct {
	mu         sync.Mutex
	calls      []string
	searchFunc func(ctx context.Context, query string, k int) ([]schema.Document, error)
}

func (s *fakeStore) SimilaritySearch(ctx context.Context, query string, k int, _ ...vectorstores.Option) ([]schema.Document, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	s.mu.Unlock()
	return s.searchFunc(ctx, query, k)
}

func (s *fakeStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// scoredStore returns n documents per query, each with the given score.
func scoredStore(n int, score float64) *fakeStore {
	return &fakeStore{
		searchFunc: func(_ context.Context, query string, _ int) ([]schema.Document, error) {
			docs := make([]schema.Document, n)
			for i := range docs {
				docs[i] = schema.Document{
					PageContent: fmt.Sprintf("%s result %d", query, i),
					Metadata:    map[string]any{"relevance_score": score},
				}
			}
			return docs, nil
		},
	}
}

// distinctText returns texts that share no characters with each other for i < 13.
func distinctText(i int) string {
	a := string(rune('a' + 2*i))
	b := string(rune('a' + 2*i + 1))
	return strings.Repeat(a, 8) + strings.Repeat(b, 5)
}

// fakeGenerator returns numbered follow-ups derived from the query.
type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	fixed []string
}

func (g *fakeGenerator) Generate(_ context.Context, query string, _ []core.Passage, n int) []string {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.fixed != nil {
		return g.fixed
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s/%d", query, i)
	}
	return out
}

type event struct {
	kind   string
	depth  int
	query  string
	status core.Status
}

// recordingMonitor keeps every callback it receives.
type recordingMonitor struct {
	events []event
	report *core.Report
	merged core.MergeInfo
}

func (m *recordingMonitor) Start(query string, _ Config) {
	m.events = append(m.events, event{kind: "start", query: query})
}

func (m *recordingMonitor) AfterSearch(depth int, query string, _ int, _ float64, _ error) {
	m.events = append(m.events, event{kind: "search", depth: depth, query: query})
}

func (m *recordingMonitor) Expanded(depth int, query string, _ []string) {
	m.events = append(m.events, event{kind: "expand", depth: depth, query: query})
}

func (m *recordingMonitor) Skipped(depth int, query string, status core.Status) {
	m.events = append(m.events, event{kind: "skip", depth: depth, query: query, status: status})
}

func (m *recordingMonitor) AfterMerge(_ int, info core.MergeInfo) {
	m.merged = info
}

func (m *recordingMonitor) Finish(_ []core.Passage, report *core.Report) {
	m.events = append(m.events, event{kind: "finish"})
	m.report = report
}

func (m *recordingMonitor) count(kind string) int {
	n := 0
	for _, e := range m.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

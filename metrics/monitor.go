// Package metrics exports retrieval activity as Prometheus metrics.
package metrics

import (
	"github.com/poiesic/burrow/core"
	"github.com/poiesic/burrow/retriever"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search outcomes recorded by the searches counter.
const (
	OutcomeOK        = "ok"
	OutcomeNoResults = "no_results"
	OutcomeFailed    = "failed"
)

// Monitor records retrieval metrics. It implements retriever.Monitor and is
// safe for concurrent use.
type Monitor struct {
	retrievals    prometheus.Counter
	searches      *prometheus.CounterVec
	expansions    prometheus.Counter
	skipped       *prometheus.CounterVec
	deduplicated  prometheus.Counter
	searchResults prometheus.Histogram
	duration      prometheus.Histogram
	depthUsed     prometheus.Histogram
	queriesIssued prometheus.Histogram
	finalPassages prometheus.Histogram
}

var _ retriever.Monitor = (*Monitor)(nil)

// NewMonitor creates the metrics and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMonitor(namespace string, reg prometheus.Registerer) *Monitor {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Monitor{
		retrievals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Total number of retrievals started",
		}),
		searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of passage store searches",
		}, []string{"depth", "outcome"}),
		expansions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansions_total",
			Help:      "Total number of low-confidence searches expanded into sub-queries",
		}),
		skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_total",
			Help:      "Total number of searches or expansions skipped, by reason",
		}, []string{"status"}),
		deduplicated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deduplicated_passages_total",
			Help:      "Total number of passages removed as near-duplicates",
		}),
		searchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Passages returned by a single passage store search",
			Buckets:   prometheus.LinearBuckets(0, 5, 7),
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		depthUsed: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recursion_depth_used",
			Help:      "Deepest recursion level that contributed passages",
			Buckets:   prometheus.LinearBuckets(1, 1, 5),
		}),
		queriesIssued: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queries_issued",
			Help:      "Searches issued per retrieval",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 6),
		}),
		finalPassages: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "final_passages",
			Help:      "Passages returned per retrieval",
			Buckets:   prometheus.LinearBuckets(0, 2, 6),
		}),
	}
}

func (m *Monitor) Start(_ string, _ retriever.Config) {
	m.retrievals.Inc()
}

func (m *Monitor) AfterSearch(depth int, _ string, results int, _ float64, err error) {
	outcome := OutcomeOK
	switch {
	case err != nil:
		outcome = OutcomeFailed
	case results == 0:
		outcome = OutcomeNoResults
	}
	m.searches.WithLabelValues(depthLabel(depth), outcome).Inc()
	if err == nil {
		m.searchResults.Observe(float64(results))
	}
}

func (m *Monitor) Expanded(_ int, _ string, _ []string) {
	m.expansions.Inc()
}

func (m *Monitor) Skipped(_ int, _ string, status core.Status) {
	m.skipped.WithLabelValues(string(status)).Inc()
}

func (m *Monitor) AfterMerge(_ int, info core.MergeInfo) {
	m.deduplicated.Add(float64(info.Deduplicated))
}

func (m *Monitor) Finish(passages []core.Passage, report *core.Report) {
	m.finalPassages.Observe(float64(len(passages)))
	if report == nil {
		return
	}
	m.duration.Observe(report.Elapsed.Seconds())
	m.depthUsed.Observe(float64(report.RecursionDepthUsed))
	m.queriesIssued.Observe(float64(report.QueriesIssued))
}

// depthLabel keeps label cardinality bounded for unusually deep configurations.
func depthLabel(depth int) string {
	if depth > 9 {
		return "10+"
	}
	return string(rune('0' + depth))
}

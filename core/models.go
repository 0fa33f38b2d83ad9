package core

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored documents.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Document is a stored passage of text together with its embedding.
// Documents are produced by ingestion and searched by passage stores.
type Document struct {
	Id         ID
	Content    string
	Source     string            // Where the passage came from, e.g. a file path
	Metadata   map[string]string // Optional metadata carried into retrieved passages
	Vector     []float32         // Embedding vector (populated by ingestion or reembedding)
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Checkpoint records how far a long-running processor has progressed.
type Checkpoint struct {
	ProcessorType string
	LastID        ID
	UpdatedAt     time.Time
}

// SearchResult pairs a stored document with its similarity score.
type SearchResult struct {
	Document *Document
	Score    float32
}

// Passage is a single retrieved unit of text.
// RelevanceScore is the only field changed after creation (by reranking).
type Passage struct {
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata"`
	RelevanceScore float64        `json:"relevance_score"`
	RetrievalDepth int            `json:"retrieval_depth"`
	RetrievalPath  []string       `json:"retrieval_path"`
}

// Query returns the first query on the passage's retrieval path, or "" if the path is empty.
func (p Passage) Query() string {
	if len(p.RetrievalPath) == 0 {
		return ""
	}
	return p.RetrievalPath[0]
}

// Status tags how a node of the retrieval tree terminated.
type Status string

const (
	StatusOK                  Status = "ok"
	StatusExpanded            Status = "expanded"
	StatusMaxQueriesReached   Status = "max_queries_reached"
	StatusMaxDocumentsReached Status = "max_documents_reached"
	StatusDuplicateQuery      Status = "duplicate_query"
	StatusMaxDepthReached     Status = "max_depth_reached"
	StatusNoResults           Status = "no_results"
	StatusSearchFailed        Status = "search_failed"
	StatusCancelled           Status = "cancelled"
)

// TreeNode mirrors one step of the recursive search.
type TreeNode struct {
	Depth    int         `json:"depth"`
	Query    string      `json:"query"`
	Results  int         `json:"results"`
	AvgScore float64     `json:"avg_score"`
	Status   Status      `json:"status"`
	Children []*TreeNode `json:"children"`
}

// Walk visits the node and all of its descendants depth-first.
func (n *TreeNode) Walk(fn func(*TreeNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// MergeInfo describes how collected passages were merged.
type MergeInfo struct {
	Strategy     string `json:"strategy"`
	RerankMethod string `json:"rerank_method"`
	Deduplicated int    `json:"deduplicated"`
}

// Report summarizes a single retrieval call.
type Report struct {
	ID                 string        `json:"id"`
	TotalResults       int           `json:"total_results"`
	FinalResults       int           `json:"final_results"`
	RecursionDepthUsed int           `json:"recursion_depth_used"`
	Elapsed            time.Duration `json:"-"`
	MergeInfo          MergeInfo     `json:"merge_info"`
	Tree               *TreeNode     `json:"retrieval_tree"`
	QueriesIssued      int           `json:"queries_issued"`
	DocumentsCollected int           `json:"documents_collected"`
}

// MarshalJSON renders Elapsed as execution_time in seconds.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	return json.Marshal(struct {
		plain
		ExecutionTime float64 `json:"execution_time"`
	}{
		plain:         plain(r),
		ExecutionTime: r.Elapsed.Seconds(),
	})
}

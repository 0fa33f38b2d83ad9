package subquery

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/poiesic/burrow/ai"
	"github.com/poiesic/burrow/core"
)

const (
	// excerptLength is the number of characters of each sample passage shown to the model.
	excerptLength = 200

	// maxSamples is the number of sample passages included in the prompt.
	maxSamples = 3

	// minQueryLength filters out fragments such as stray numbering.
	minQueryLength = 5
)

// Strategy produces up to n follow-up queries for query.
// sample holds passages already retrieved for query, best first.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, query string, sample []core.Passage, n int) ([]string, error)
}

// LLMStrategy asks a language model for follow-up queries.
type LLMStrategy struct {
	generator ai.TextGenerator
}

var _ Strategy = (*LLMStrategy)(nil)

// NewLLMStrategy creates a strategy backed by generator.
func NewLLMStrategy(generator ai.TextGenerator) (*LLMStrategy, error) {
	if generator == nil {
		return nil, ErrTextGeneratorRequired
	}
	return &LLMStrategy{generator: generator}, nil
}

// Name identifies the strategy in logs.
func (s *LLMStrategy) Name() string { return "llm" }

// Generate prompts the model and parses one query per line of its answer.
// An answer with no usable lines is reported as ErrNoQueries.
func (s *LLMStrategy) Generate(ctx context.Context, query string, sample []core.Passage, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	answer, err := s.generator.GenerateText(ctx, buildPrompt(query, sample, n))
	if err != nil {
		return nil, err
	}
	queries := parseQueries(answer, n)
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}
	return queries, nil
}

func buildPrompt(query string, sample []core.Passage, n int) string {
	var excerpts strings.Builder
	for i, p := range sample {
		if i == maxSamples {
			break
		}
		excerpts.WriteString(truncateRunes(p.Content, excerptLength))
		excerpts.WriteByte('\n')
	}

	return fmt.Sprintf(`Based on the original query and the partial results retrieved so far, write %d more specific follow-up search queries.
The queries will be used to deepen the search and find supplementary information.

Original query: %s

Current results:
%s
Write %d queries, one per line. Each query should:
- address a different aspect of the original query
- build on the content of the current results
- help find information the current results are missing

Output only the list of queries and nothing else.
`, n, query, excerpts.String(), n)
}

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

func parseQueries(answer string, n int) []string {
	queries := make([]string, 0, n)
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if len([]rune(line)) <= minQueryLength {
			continue
		}
		queries = append(queries, line)
		if len(queries) == n {
			break
		}
	}
	return queries
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// HeuristicStrategy rewrites the query without calling any service.
type HeuristicStrategy struct{}

var _ Strategy = HeuristicStrategy{}

// Name identifies the strategy in logs.
func (HeuristicStrategy) Name() string { return "heuristic" }

// Generate returns a request for details of the query and, for queries of
// more than one word, the query without its first word. It never fails.
func (HeuristicStrategy) Generate(_ context.Context, query string, _ []core.Passage, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	query = strings.TrimSpace(query)
	queries := []string{fmt.Sprintf("What are the specific details of %s?", query)}

	words := strings.Fields(query)
	if len(words) > 1 {
		queries = append(queries, strings.Join(words[1:], " "))
	}

	if len(queries) > n {
		queries = queries[:n]
	}
	return queries, nil
}

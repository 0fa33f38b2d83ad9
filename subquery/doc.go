// Package subquery generates follow-up queries that broaden a low-confidence search.
//
// A Generator runs an ordered chain of Strategy values and returns the output of
// the first one that succeeds with at least one query. The usual chain asks a
// language model for follow-ups (LLMStrategy) and falls back to a deterministic
// rewrite of the query (HeuristicStrategy), which never fails.
package subquery

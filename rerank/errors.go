package rerank

import "errors"

var (
	// ErrNoScorers is returned when a Reranker is created without scorers.
	ErrNoScorers = errors.New("at least one scorer required")

	// ErrScoreCount is returned when a scorer returns the wrong number of scores.
	ErrScoreCount = errors.New("scorer returned wrong number of scores")

	// ErrEndpointRequired is returned when a cross-encoder has no endpoint configured.
	ErrEndpointRequired = errors.New("cross-encoder endpoint required")

	// ErrInvalidWeights is returned when blend weights are negative or both zero.
	ErrInvalidWeights = errors.New("blend weights must be non-negative and not both zero")
)

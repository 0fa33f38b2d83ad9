package retriever

import "errors"

var (
	// ErrPassageStoreRequired is returned when a passage store is not provided.
	ErrPassageStoreRequired = errors.New("passage store required")

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid retrieval config")

	// ErrUnknownPreset is returned when a preset name is not recognized.
	ErrUnknownPreset = errors.New("unknown preset")

	// ErrCrossEncoderRequired is returned when cross-encoder reranking is
	// configured without a cross-encoder scorer.
	ErrCrossEncoderRequired = errors.New("cross-encoder scorer required")
)

package similarity

import "errors"

var (
	// ErrEmptyVocabulary is returned when no n-grams can be extracted from the input.
	ErrEmptyVocabulary = errors.New("empty vocabulary; documents contain no characters")

	// ErrNotFitted is returned when Transform is called before Fit.
	ErrNotFitted = errors.New("vectorizer has not been fitted")
)

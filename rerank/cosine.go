package rerank

import (
	"context"

	"github.com/poiesic/burrow/similarity"
)

// DefaultCosineFeatures caps the vocabulary of the cosine scorer.
const DefaultCosineFeatures = 100

// CosineScorer scores pairs by TF-IDF cosine similarity.
// The vectorizer is fitted on the distinct queries plus all passages of a call.
type CosineScorer struct {
	maxFeatures int
}

var _ Scorer = (*CosineScorer)(nil)

// NewCosineScorer creates a cosine scorer limited to maxFeatures n-grams.
// Zero or negative uses DefaultCosineFeatures.
func NewCosineScorer(maxFeatures int) *CosineScorer {
	if maxFeatures <= 0 {
		maxFeatures = DefaultCosineFeatures
	}
	return &CosineScorer{maxFeatures: maxFeatures}
}

func (s *CosineScorer) Name() string { return "cosine" }

// Score returns the cosine similarity of every pair.
func (s *CosineScorer) Score(ctx context.Context, pairs []Pair) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return []float64{}, nil
	}

	queryIndex := make(map[string]int)
	var corpus []string
	for _, p := range pairs {
		if _, ok := queryIndex[p.Query]; !ok {
			queryIndex[p.Query] = len(corpus)
			corpus = append(corpus, p.Query)
		}
	}
	offset := len(corpus)
	for _, p := range pairs {
		corpus = append(corpus, p.Passage)
	}

	vecs, err := similarity.NewVectorizer(similarity.WithMaxFeatures(s.maxFeatures)).FitTransform(corpus)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(pairs))
	for i, p := range pairs {
		scores[i] = similarity.Cosine(vecs[queryIndex[p.Query]], vecs[offset+i])
	}
	return scores, nil
}

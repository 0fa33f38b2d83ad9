package similarity

import (
	"math"
	"slices"
	"strings"
	"unicode"
)

// Vector is a sparse TF-IDF row keyed by feature index.
type Vector map[int]float64

// Vectorizer builds character 1-2 gram TF-IDF vectors.
// A Vectorizer is not safe for concurrent Fit calls.
type Vectorizer struct {
	maxFeatures int
	vocabulary  map[string]int
	idf         []float64
}

// VectorizerOption configures a Vectorizer.
type VectorizerOption func(*Vectorizer)

// WithMaxFeatures keeps only the n most frequent n-grams across the corpus.
// Zero or negative means unlimited.
func WithMaxFeatures(n int) VectorizerOption {
	return func(v *Vectorizer) {
		v.maxFeatures = n
	}
}

// NewVectorizer creates an unfitted vectorizer.
func NewVectorizer(opts ...VectorizerOption) *Vectorizer {
	v := &Vectorizer{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Features returns the number of features in the fitted vocabulary.
func (v *Vectorizer) Features() int {
	return len(v.vocabulary)
}

// Fit learns the vocabulary and idf weights from docs.
func (v *Vectorizer) Fit(docs []string) error {
	counts := make([]map[string]int, len(docs))
	df := make(map[string]int)
	total := make(map[string]int)
	for i, doc := range docs {
		counts[i] = ngramCounts(doc)
		for term, c := range counts[i] {
			df[term]++
			total[term] += c
		}
	}
	if len(df) == 0 {
		return ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	if v.maxFeatures > 0 && len(terms) > v.maxFeatures {
		slices.SortFunc(terms, func(a, b string) int {
			if total[a] != total[b] {
				return total[b] - total[a]
			}
			return strings.Compare(a, b)
		})
		terms = terms[:v.maxFeatures]
	}
	slices.Sort(terms)

	n := float64(len(docs))
	v.vocabulary = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	for i, term := range terms {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return nil
}

// Transform maps docs onto the fitted vocabulary.
func (v *Vectorizer) Transform(docs []string) ([]Vector, error) {
	if v.vocabulary == nil {
		return nil, ErrNotFitted
	}
	out := make([]Vector, len(docs))
	for i, doc := range docs {
		row := make(Vector)
		for term, c := range ngramCounts(doc) {
			if idx, ok := v.vocabulary[term]; ok {
				row[idx] = float64(c) * v.idf[idx]
			}
		}
		normalize(row)
		out[i] = row
	}
	return out, nil
}

// FitTransform fits on docs and returns their vectors.
func (v *Vectorizer) FitTransform(docs []string) ([]Vector, error) {
	if err := v.Fit(docs); err != nil {
		return nil, err
	}
	return v.Transform(docs)
}

// Cosine returns the cosine similarity of a and b, or 0 if either is empty.
func Cosine(a, b Vector) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	var dot float64
	for idx, x := range a {
		dot += x * b[idx]
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (na * nb)
}

// PairwiseCosine returns the full similarity matrix of vecs.
func PairwiseCosine(vecs []Vector) [][]float64 {
	m := make([][]float64, len(vecs))
	for i := range vecs {
		m[i] = make([]float64, len(vecs))
	}
	for i := range vecs {
		m[i][i] = Cosine(vecs[i], vecs[i])
		for j := i + 1; j < len(vecs); j++ {
			s := Cosine(vecs[i], vecs[j])
			m[i][j] = s
			m[j][i] = s
		}
	}
	return m
}

// Similarity fits a fresh vectorizer on both texts and returns their cosine.
func Similarity(a, b string) (float64, error) {
	vecs, err := NewVectorizer().FitTransform([]string{a, b})
	if err != nil {
		return 0, err
	}
	return Cosine(vecs[0], vecs[1]), nil
}

func ngramCounts(doc string) map[string]int {
	runes := []rune(preprocess(doc))
	counts := make(map[string]int, len(runes)*2)
	for i := range runes {
		counts[string(runes[i])]++
		if i+1 < len(runes) {
			counts[string(runes[i:i+2])]++
		}
	}
	return counts
}

// preprocess lowercases text and collapses whitespace runs to a single space.
func preprocess(doc string) string {
	var b strings.Builder
	b.Grow(len(doc))
	inSpace := false
	for _, r := range strings.ToLower(doc) {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteRune(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func norm(v Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func normalize(v Vector) {
	n := norm(v)
	if n == 0 {
		return
	}
	for idx, x := range v {
		v[idx] = x / n
	}
}

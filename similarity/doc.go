// Package similarity scores text-to-text similarity with character n-gram
// TF-IDF vectors and uses it to collapse near-duplicate passages.
//
// The vectorizer lowercases input, collapses runs of whitespace to a single
// space and counts character unigrams and bigrams. Inverse document
// frequency is smoothed as ln((1+n)/(1+df))+1 and every row is L2
// normalized, so the cosine of two rows is their dot product.
package similarity

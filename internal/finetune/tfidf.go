package finetune

import (
	"math"

	"github.com/knoguchi/lexrag/internal/index"
)

// vectorizer holds the vocabulary and smoothed inverse document
// frequencies fitted over a set of texts.
type vectorizer struct {
	idf map[string]float64
}

// fitVectorizer computes idf(t) = ln((1+n)/(1+df(t))) + 1 over docs.
func fitVectorizer(docs []string) *vectorizer {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range index.Tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for tok, d := range df {
		idf[tok] = math.Log((1+n)/(1+float64(d))) + 1
	}
	return &vectorizer{idf: idf}
}

// transform returns the L2-normalised tf-idf vector of text. Tokens outside
// the fitted vocabulary are ignored.
func (v *vectorizer) transform(text string) map[string]float64 {
	vec := make(map[string]float64)
	for _, tok := range index.Tokenize(text) {
		if _, ok := v.idf[tok]; ok {
			vec[tok]++
		}
	}

	var norm float64
	for tok, tf := range vec {
		w := tf * v.idf[tok]
		vec[tok] = w
		norm += w * w
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for tok := range vec {
		vec[tok] /= norm
	}
	return vec
}

// cosine of two normalised sparse vectors.
func cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for tok, w := range a {
		dot += w * b[tok]
	}
	return dot
}

package features

import (
	"math"
	"sort"
)

type sparseEntry struct {
	Index int
	Value float64
}

// sparseVec is a row of a sparse matrix, sorted by column index
type sparseVec []sparseEntry

// TFIDF is a fitted term-frequency / inverse-document-frequency vectorizer.
// IDF uses the smoothed form ln((1+n)/(1+df)) + 1 and rows are L2-normalised.
type TFIDF struct {
	Vocabulary map[string]int
	IDF        []float64
	NGramMax   int
}

// FitTFIDF learns the vocabulary and IDF weights from tokenized documents.
// maxFeatures <= 0 keeps every term.
func FitTFIDF(docs [][]string, ngramMax, maxFeatures int) *TFIDF {
	df := make(map[string]int)
	tf := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]struct{})
		for _, g := range NGrams(tokens, ngramMax) {
			tf[g]++
			if _, ok := seen[g]; !ok {
				seen[g] = struct{}{}
				df[g]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}

	if maxFeatures > 0 && len(terms) > maxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if tf[terms[i]] != tf[terms[j]] {
				return tf[terms[i]] > tf[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:maxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(docs))
	vec := &TFIDF{
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
		NGramMax:   ngramMax,
	}
	for i, term := range terms {
		vec.Vocabulary[term] = i
		vec.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return vec
}

// Size returns the vocabulary size
func (t *TFIDF) Size() int {
	return len(t.IDF)
}

// Transform weights one tokenized document. Unknown terms are ignored and an
// empty document yields an empty vector.
func (t *TFIDF) Transform(tokens []string) sparseVec {
	counts := make(map[int]float64)
	for _, g := range NGrams(tokens, t.NGramMax) {
		if idx, ok := t.Vocabulary[g]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	row := make(sparseVec, 0, len(counts))
	for idx, c := range counts {
		row = append(row, sparseEntry{Index: idx, Value: c * t.IDF[idx]})
	}
	// summing in column order keeps the norm bitwise stable across calls
	sort.Slice(row, func(i, j int) bool { return row[i].Index < row[j].Index })
	var norm float64
	for _, e := range row {
		norm += e.Value * e.Value
	}
	norm = math.Sqrt(norm)
	for i := range row {
		row[i].Value /= norm
	}
	return row
}

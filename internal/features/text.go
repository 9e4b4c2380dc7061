package features

import (
	"fmt"

	"github.com/cuongbtq/job-triage/internal/model"
	"gonum.org/v1/gonum/mat"
)

// TextStage turns one free-text column into a dense, fixed-width vector:
// tokenize -> TF-IDF over n-grams -> truncated SVD.
type TextStage struct {
	name        string
	column      string
	components  int
	ngramMax    int
	maxFeatures int
	seed        uint64
}

// NewTextStage creates a text sub-pipeline for column
func NewTextStage(name, column string, components, ngramMax, maxFeatures int, seed uint64) *TextStage {
	return &TextStage{
		name:        name,
		column:      column,
		components:  components,
		ngramMax:    ngramMax,
		maxFeatures: maxFeatures,
		seed:        seed,
	}
}

func (s *TextStage) Name() string { return s.name }

func (s *TextStage) Fit(records []model.JobRecord, _ []int, _ int) (FittedStage, error) {
	get, ok := textColumns[s.column]
	if !ok {
		return nil, fmt.Errorf("text stage %s: unknown text column %q", s.name, s.column)
	}

	docs := make([][]string, len(records))
	for i := range records {
		docs[i] = Tokenize(get(&records[i]))
	}

	vectorizer := FitTFIDF(docs, s.ngramMax, s.maxFeatures)
	rows := make([]sparseVec, len(docs))
	for i, tokens := range docs {
		rows[i] = vectorizer.Transform(tokens)
	}

	svd, err := FitTruncatedSVD(rows, vectorizer.Size(), s.components, s.seed)
	if err != nil {
		return nil, fmt.Errorf("text stage %s: %w", s.name, err)
	}

	return &FittedText{
		StageName:  s.name,
		Column:     s.column,
		Vectorizer: vectorizer,
		SVD:        svd,
	}, nil
}

// FittedText is a text sub-pipeline fitted once on training data
type FittedText struct {
	StageName  string
	Column     string
	Vectorizer *TFIDF
	SVD        *TruncatedSVD
}

func (f *FittedText) Name() string { return f.StageName }

func (f *FittedText) Width() int { return f.SVD.Components }

func (f *FittedText) TransformInto(records []model.JobRecord, dst *mat.Dense, offset int) {
	get := textColumns[f.Column]
	for i := range records {
		projected := f.SVD.Transform(f.Vectorizer.Transform(Tokenize(get(&records[i]))))
		for j, v := range projected {
			dst.Set(i, offset+j, v)
		}
	}
}

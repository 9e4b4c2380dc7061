package features

import (
	"fmt"

	"github.com/cuongbtq/job-triage/internal/model"
	"gonum.org/v1/gonum/mat"
)

// TargetEncoderStage replaces each categorical value with the smoothed
// per-class frequency of the training label among rows sharing that value:
//
//	enc_k(v) = (count_k(v) + a*prior_k) / (count(v) + a)
//
// giving nClasses columns per categorical column regardless of cardinality.
type TargetEncoderStage struct {
	name      string
	columns   []string
	smoothing float64
}

// NewTargetEncoderStage creates a target encoder over the named categorical columns
func NewTargetEncoderStage(name string, columns []string, smoothing float64) *TargetEncoderStage {
	return &TargetEncoderStage{name: name, columns: columns, smoothing: smoothing}
}

func (s *TargetEncoderStage) Name() string { return s.name }

func (s *TargetEncoderStage) Fit(records []model.JobRecord, y []int, nClasses int) (FittedStage, error) {
	if len(y) != len(records) {
		return nil, fmt.Errorf("target encoder %s: %d labels for %d records", s.name, len(y), len(records))
	}
	if nClasses <= 0 {
		return nil, fmt.Errorf("target encoder %s: no classes", s.name)
	}

	prior := make([]float64, nClasses)
	for _, label := range y {
		prior[label]++
	}
	for k := range prior {
		prior[k] /= float64(len(y))
	}

	fitted := &FittedTargetEncoder{
		StageName: s.name,
		Columns:   s.columns,
		Classes:   nClasses,
		Prior:     prior,
		Smoothing: s.smoothing,
		Encodings: make([]map[string][]float64, len(s.columns)),
	}

	for c, col := range s.columns {
		get, ok := categoricalColumns[col]
		if !ok {
			return nil, fmt.Errorf("target encoder %s: unknown categorical column %q", s.name, col)
		}

		counts := make(map[string][]float64)
		totals := make(map[string]float64)
		for i := range records {
			v := get(&records[i])
			if counts[v] == nil {
				counts[v] = make([]float64, nClasses)
			}
			counts[v][y[i]]++
			totals[v]++
		}

		enc := make(map[string][]float64, len(counts))
		for v, perClass := range counts {
			vec := make([]float64, nClasses)
			for k := range vec {
				vec[k] = (perClass[k] + s.smoothing*prior[k]) / (totals[v] + s.smoothing)
			}
			enc[v] = vec
		}
		fitted.Encodings[c] = enc
	}
	return fitted, nil
}

// FittedTargetEncoder maps category values seen in training to encoded
// vectors; unseen values map to the class prior.
type FittedTargetEncoder struct {
	StageName string
	Columns   []string
	Classes   int
	Prior     []float64
	Smoothing float64
	Encodings []map[string][]float64
}

func (f *FittedTargetEncoder) Name() string { return f.StageName }

func (f *FittedTargetEncoder) Width() int { return len(f.Columns) * f.Classes }

// Encode returns the encoded vector of one value of column c
func (f *FittedTargetEncoder) Encode(c int, value string) []float64 {
	if vec, ok := f.Encodings[c][value]; ok {
		return vec
	}
	return f.Prior
}

func (f *FittedTargetEncoder) TransformInto(records []model.JobRecord, dst *mat.Dense, offset int) {
	for c, col := range f.Columns {
		get := categoricalColumns[col]
		base := offset + c*f.Classes
		for i := range records {
			for k, v := range f.Encode(c, get(&records[i])) {
				dst.Set(i, base+k, v)
			}
		}
	}
}

package features

import (
	"fmt"
	"math"

	"github.com/cuongbtq/job-triage/internal/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ScalerStage standardizes numeric columns to zero mean and unit variance
type ScalerStage struct {
	name    string
	columns []string
}

// NewScalerStage creates a standardization stage over the named numeric columns
func NewScalerStage(name string, columns []string) *ScalerStage {
	return &ScalerStage{name: name, columns: columns}
}

func (s *ScalerStage) Name() string { return s.name }

// Fit computes population mean and standard deviation per column. Missing
// values are excluded from the statistics and encoded as the mean.
func (s *ScalerStage) Fit(records []model.JobRecord, _ []int, _ int) (FittedStage, error) {
	fitted := &FittedScaler{
		StageName: s.name,
		Columns:   s.columns,
		Means:     make([]float64, len(s.columns)),
		Scales:    make([]float64, len(s.columns)),
	}

	for c, col := range s.columns {
		get, ok := numericColumns[col]
		if !ok {
			return nil, fmt.Errorf("scaler %s: unknown numeric column %q", s.name, col)
		}
		values := make([]float64, 0, len(records))
		for i := range records {
			if v, ok := get(&records[i]); ok && !math.IsNaN(v) {
				values = append(values, v)
			}
		}

		fitted.Means[c], fitted.Scales[c] = 0, 1
		if len(values) == 0 {
			continue
		}
		mean, variance := stat.PopMeanVariance(values, nil)
		fitted.Means[c] = mean
		if sd := math.Sqrt(variance); sd > 0 {
			fitted.Scales[c] = sd
		}
	}
	return fitted, nil
}

// FittedScaler holds the statistics learned on the training partition
type FittedScaler struct {
	StageName string
	Columns   []string
	Means     []float64
	Scales    []float64
}

func (f *FittedScaler) Name() string { return f.StageName }

func (f *FittedScaler) Width() int { return len(f.Columns) }

func (f *FittedScaler) TransformInto(records []model.JobRecord, dst *mat.Dense, offset int) {
	for c, col := range f.Columns {
		get := numericColumns[col]
		for i := range records {
			v, ok := get(&records[i])
			if !ok || math.IsNaN(v) {
				dst.Set(i, offset+c, 0)
				continue
			}
			dst.Set(i, offset+c, (v-f.Means[c])/f.Scales[c])
		}
	}
}

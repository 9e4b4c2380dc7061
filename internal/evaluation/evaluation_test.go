package evaluation

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestParseScorer(t *testing.T) {
	tests := []struct {
		in      string
		want    Scorer
		wantErr bool
	}{
		{in: "precision", want: ScorerPrecision},
		{in: "recall", want: ScorerRecall},
		{in: "f1", want: ScorerF1},
		{in: "F1", wantErr: true},
		{in: "accuracy", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScorer(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownScorer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScorer_Score(t *testing.T) {
	// class 0: tp=2 fp=1 fn=0 -> p=2/3 r=1   f1=0.8
	// class 1: tp=1 fp=0 fn=1 -> p=1   r=1/2 f1=2/3
	// class 2: never seen -> excluded from the average
	yTrue := []int{0, 0, 1, 1}
	yPred := []int{0, 0, 1, 0}

	tests := []struct {
		scorer Scorer
		want   float64
	}{
		{scorer: ScorerPrecision, want: (2.0/3 + 1) / 2},
		{scorer: ScorerRecall, want: (1 + 0.5) / 2},
		{scorer: ScorerF1, want: (0.8 + 2.0/3) / 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.scorer), func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.scorer.Score(yTrue, yPred, 3), 1e-12)
		})
	}

	t.Run("zero division counts as zero", func(t *testing.T) {
		// class 1 is never predicted: precision 0/0 -> 0
		assert.InDelta(t, 0.25, ScorerPrecision.Score([]int{0, 1}, []int{0, 0}, 2), 1e-12)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Zero(t, ScorerF1.Score(nil, nil, 3))
	})
}

func TestConfusion(t *testing.T) {
	yTrue := []int{0, 0, 0, 1, 2, 2}
	yPred := []int{0, 1, 0, 1, 2, 0}

	counts := Confusion(yTrue, yPred, 3)
	assert.Equal(t, []float64{2, 1, 0}, counts.RawRowView(0))
	assert.Equal(t, []float64{0, 1, 0}, counts.RawRowView(1))
	assert.Equal(t, []float64{1, 0, 1}, counts.RawRowView(2))

	norm := NormalizeRows(counts)
	assert.InDeltaSlice(t, []float64{2.0 / 3, 1.0 / 3, 0}, norm.RawRowView(0), 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 0, 0.5}, norm.RawRowView(2), 1e-12)

	empty := NormalizeRows(mat.NewDense(2, 2, []float64{0, 0, 1, 3}))
	assert.Equal(t, []float64{0, 0}, empty.RawRowView(0))
	assert.Equal(t, []float64{0.25, 0.75}, empty.RawRowView(1))
}

func TestClassificationReport(t *testing.T) {
	yTrue := []int{0, 0, 1, 1}
	yPred := []int{0, 0, 1, 0}
	r := NewClassificationReport(yTrue, yPred, []string{"Good", "Bad", "Maybe"})

	require.Len(t, r.Classes, 3)
	assert.Equal(t, "Good", r.Classes[0].Label)
	assert.Equal(t, 2, r.Classes[0].Support)
	assert.InDelta(t, 0.8, r.Classes[0].F1, 1e-12)
	assert.Equal(t, 0, r.Classes[2].Support)
	assert.InDelta(t, 0.75, r.Accuracy, 1e-12)
	assert.InDelta(t, ScorerF1.Score(yTrue, yPred, 3), r.MacroAvg.F1, 1e-12)
	assert.InDelta(t, (0.8+2.0/3)/2, r.WeightedAvg.F1, 1e-12)

	text := r.String()
	for _, want := range []string{"precision", "recall", "f1-score", "support", "Good", "accuracy", "macro avg", "weighted avg"} {
		assert.Contains(t, text, want)
	}
}

func TestPrecisionRecall(t *testing.T) {
	positive := []bool{true, false, true, false}
	scores := []float64{0.9, 0.8, 0.7, 0.1}

	c := PrecisionRecall(positive, scores)

	assert.Equal(t, []float64{0, 0.5, 0.5, 1, 1}, c.Recall)
	assert.InDeltaSlice(t, []float64{1, 1, 0.5, 2.0 / 3, 0.5}, c.Precision, 1e-12)
	assert.Equal(t, []float64{0.9, 0.8, 0.7, 0.1}, c.Thresholds)
	assert.InDelta(t, 0.5*1+0.5*(2.0/3), c.AveragePrecision, 1e-12)

	t.Run("tied scores form one point", func(t *testing.T) {
		c := PrecisionRecall([]bool{true, false}, []float64{0.5, 0.5})
		assert.Equal(t, []float64{0, 1}, c.Recall)
		assert.Equal(t, []float64{0.5}, c.Thresholds)
		assert.InDelta(t, 0.5, c.AveragePrecision, 1e-12)
	})

	t.Run("perfect ranking", func(t *testing.T) {
		c := PrecisionRecall([]bool{true, true, false}, []float64{3, 2, 1})
		assert.InDelta(t, 1.0, c.AveragePrecision, 1e-12)
	})

	t.Run("no positives", func(t *testing.T) {
		c := PrecisionRecall([]bool{false, false}, []float64{1, 2})
		assert.Zero(t, c.AveragePrecision)
	})
}

func TestClassCurves(t *testing.T) {
	yTrue := []int{0, 1, 2}
	scores := mat.NewDense(3, 3, []float64{
		0.8, 0.1, 0.1,
		0.2, 0.7, 0.1,
		0.1, 0.2, 0.7,
	})

	curves, micro := ClassCurves(yTrue, scores, []string{"Good", "Maybe", "Bad"})
	require.Len(t, curves, 3)
	for _, c := range curves {
		assert.InDelta(t, 1.0, c.AveragePrecision, 1e-12, c.Label)
	}
	assert.Equal(t, "micro", micro.Label)
	assert.InDelta(t, 1.0, micro.AveragePrecision, 1e-12)

	none, empty := ClassCurves(yTrue, nil, nil)
	assert.Nil(t, none)
	assert.Equal(t, "micro", empty.Label)
}

func TestEvaluate(t *testing.T) {
	in := Input{
		Classifier: "svm",
		Scorer:     ScorerF1,
		Classes:    []string{"Good", "Maybe", "Bad"},
		TrainTrue:  []int{0, 1, 2, 0, 1, 2},
		TrainPred:  []int{0, 1, 2, 0, 1, 2},
		TestTrue:   []int{0, 1, 2},
		TestPred:   []int{0, 1, 1},
		TestScores: mat.NewDense(3, 3, []float64{
			0.8, 0.1, 0.1,
			0.2, 0.7, 0.1,
			0.1, 0.5, 0.4,
		}),
	}

	t.Run("without plots", func(t *testing.T) {
		r, err := Evaluate(in)
		require.NoError(t, err)

		assert.InDelta(t, 1.0, r.TrainScore, 1e-12)
		assert.Less(t, r.TestScore, 1.0)
		assert.Equal(t, 6, r.TrainSize)
		assert.Equal(t, 3, r.TestSize)
		assert.Equal(t, []float64{0, 1, 0}, r.Confusion[2])
		assert.Len(t, r.Curves, 3)
		assert.Empty(t, r.Plots)

		raw, err := json.Marshal(r)
		require.NoError(t, err)
		var back Report
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, r.TestScore, back.TestScore)
		assert.Equal(t, r.Classification, back.Classification)

		assert.True(t, strings.HasPrefix(r.Summary(), "classifier: svm"))
	})

	t.Run("with plots", func(t *testing.T) {
		in := in
		in.Plots = true
		r, err := Evaluate(in)
		require.NoError(t, err)

		require.Contains(t, r.Plots, PlotPRCurves)
		require.Contains(t, r.Plots, PlotConfusion)
		assert.True(t, bytes.HasPrefix(r.Plots[PlotPRCurves], pngMagic))
		assert.True(t, bytes.HasPrefix(r.Plots[PlotConfusion], pngMagic))
	})
}

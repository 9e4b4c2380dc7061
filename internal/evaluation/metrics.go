// Package evaluation scores trained classifiers on held-out data: macro
// precision, recall and F1, the per-class classification report, the
// row-normalised confusion matrix and precision-recall curves.
package evaluation

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Scorer names the macro-averaged metric used for model selection
type Scorer string

const (
	ScorerPrecision Scorer = "precision"
	ScorerRecall    Scorer = "recall"
	ScorerF1        Scorer = "f1"
)

var ErrUnknownScorer = errors.New("unknown scorer")

func ParseScorer(s string) (Scorer, error) {
	switch Scorer(s) {
	case ScorerPrecision, ScorerRecall, ScorerF1:
		return Scorer(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScorer, s)
}

// Score computes the macro average of the metric over the classes present
// in either yTrue or yPred. Undefined ratios count as zero.
func (s Scorer) Score(yTrue, yPred []int, nClasses int) float64 {
	stats := perClass(yTrue, yPred, nClasses)
	var sum float64
	var n int
	for _, c := range stats {
		if !c.present() {
			continue
		}
		n++
		switch s {
		case ScorerPrecision:
			sum += c.precision()
		case ScorerRecall:
			sum += c.recall()
		default:
			sum += c.f1()
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

type classStats struct {
	tp, fp, fn int
}

func (c classStats) present() bool { return c.tp+c.fp+c.fn > 0 }

func (c classStats) support() int { return c.tp + c.fn }

func (c classStats) precision() float64 { return ratio(c.tp, c.tp+c.fp) }

func (c classStats) recall() float64 { return ratio(c.tp, c.tp+c.fn) }

func (c classStats) f1() float64 {
	p, r := c.precision(), c.recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func perClass(yTrue, yPred []int, nClasses int) []classStats {
	stats := make([]classStats, nClasses)
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t == p {
			stats[t].tp++
			continue
		}
		stats[t].fn++
		stats[p].fp++
	}
	return stats
}

// Confusion counts predictions: rows are true classes, columns predicted
func Confusion(yTrue, yPred []int, nClasses int) *mat.Dense {
	m := mat.NewDense(nClasses, nClasses, nil)
	for i := range yTrue {
		m.Set(yTrue[i], yPred[i], m.At(yTrue[i], yPred[i])+1)
	}
	return m
}

// NormalizeRows divides every row by its sum; empty rows stay zero
func NormalizeRows(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		var sum float64
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			continue
		}
		for j, v := range row {
			out.Set(i, j, v/sum)
		}
	}
	return out
}

// Accuracy is the fraction of matching labels
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var hit int
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

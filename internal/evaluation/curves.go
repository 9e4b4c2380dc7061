package evaluation

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// PRCurve is a precision-recall curve ordered by increasing recall. The
// first point is (recall 0, precision 1); Thresholds[i] produced point i+1.
type PRCurve struct {
	Label            string    `json:"label"`
	Precision        []float64 `json:"precision"`
	Recall           []float64 `json:"recall"`
	Thresholds       []float64 `json:"thresholds"`
	AveragePrecision float64   `json:"average_precision"`
}

// PrecisionRecall computes the curve of a binary problem. Average precision
// is the step-wise sum of precision weighted by recall increments.
func PrecisionRecall(positive []bool, scores []float64) PRCurve {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	var total int
	for _, p := range positive {
		if p {
			total++
		}
	}

	c := PRCurve{Precision: []float64{1}, Recall: []float64{0}}
	var tp, fp int
	for pos, i := range order {
		if positive[i] {
			tp++
		} else {
			fp++
		}
		if pos+1 < len(order) && scores[order[pos+1]] == scores[i] {
			continue
		}
		precision := float64(tp) / float64(tp+fp)
		recall := ratio(tp, total)
		c.AveragePrecision += (recall - c.Recall[len(c.Recall)-1]) * precision
		c.Precision = append(c.Precision, precision)
		c.Recall = append(c.Recall, recall)
		c.Thresholds = append(c.Thresholds, scores[i])
	}
	return c
}

// ClassCurves computes a one-vs-rest curve per class plus the micro-averaged
// curve over all (sample, class) pairs.
func ClassCurves(yTrue []int, scores *mat.Dense, labels []string) ([]PRCurve, PRCurve) {
	if scores == nil {
		return nil, PRCurve{Label: "micro"}
	}
	n, k := scores.Dims()
	curves := make([]PRCurve, k)

	microPos := make([]bool, 0, n*k)
	microScores := make([]float64, 0, n*k)

	for j := 0; j < k; j++ {
		pos := make([]bool, n)
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			pos[i] = yTrue[i] == j
			col[i] = scores.At(i, j)
		}
		curves[j] = PrecisionRecall(pos, col)
		curves[j].Label = labels[j]

		microPos = append(microPos, pos...)
		microScores = append(microScores, col...)
	}

	micro := PrecisionRecall(microPos, microScores)
	micro.Label = "micro"
	return curves, micro
}

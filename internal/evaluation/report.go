package evaluation

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ClassMetrics is one row of the classification report
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ClassificationReport is the per-class breakdown with summary rows
type ClassificationReport struct {
	Classes     []ClassMetrics `json:"classes"`
	Accuracy    float64        `json:"accuracy"`
	MacroAvg    ClassMetrics   `json:"macro_avg"`
	WeightedAvg ClassMetrics   `json:"weighted_avg"`
	Support     int            `json:"support"`
}

// NewClassificationReport builds the report for encoded labels. Averages
// cover the classes present in yTrue or yPred, matching Scorer.Score.
func NewClassificationReport(yTrue, yPred []int, labels []string) ClassificationReport {
	stats := perClass(yTrue, yPred, len(labels))
	r := ClassificationReport{
		Accuracy: Accuracy(yTrue, yPred),
		Support:  len(yTrue),
		MacroAvg: ClassMetrics{Label: "macro avg", Support: len(yTrue)},
		WeightedAvg: ClassMetrics{
			Label:   "weighted avg",
			Support: len(yTrue),
		},
	}

	var present int
	for k, s := range stats {
		row := ClassMetrics{
			Label:     labels[k],
			Precision: s.precision(),
			Recall:    s.recall(),
			F1:        s.f1(),
			Support:   s.support(),
		}
		r.Classes = append(r.Classes, row)

		if s.present() {
			present++
			r.MacroAvg.Precision += row.Precision
			r.MacroAvg.Recall += row.Recall
			r.MacroAvg.F1 += row.F1
		}
		if r.Support > 0 {
			w := float64(row.Support) / float64(r.Support)
			r.WeightedAvg.Precision += w * row.Precision
			r.WeightedAvg.Recall += w * row.Recall
			r.WeightedAvg.F1 += w * row.F1
		}
	}
	if present > 0 {
		r.MacroAvg.Precision /= float64(present)
		r.MacroAvg.Recall /= float64(present)
		r.MacroAvg.F1 /= float64(present)
	}
	return r
}

// String renders the report as an aligned text table
func (r ClassificationReport) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "\tprecision\trecall\tf1-score\tsupport\t")
	for _, c := range r.Classes {
		writeRow(w, c)
	}
	fmt.Fprintln(w, "\t\t\t\t\t")
	fmt.Fprintf(w, "accuracy\t\t\t%.2f\t%d\t\n", r.Accuracy, r.Support)
	writeRow(w, r.MacroAvg)
	writeRow(w, r.WeightedAvg)
	w.Flush()
	return b.String()
}

func writeRow(w *tabwriter.Writer, c ClassMetrics) {
	fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
}

// Report is the persisted evaluation summary of one training run
type Report struct {
	Classifier     string               `json:"classifier"`
	Scorer         Scorer               `json:"scorer"`
	Params         map[string]float64   `json:"params,omitempty"`
	Classes        []string             `json:"classes"`
	TrainScore     float64              `json:"train_score"`
	TestScore      float64              `json:"test_score"`
	CVScore        *float64             `json:"cv_score,omitempty"`
	TrainSize      int                  `json:"train_size"`
	TestSize       int                  `json:"test_size"`
	Classification ClassificationReport `json:"classification"`
	Confusion      [][]float64          `json:"confusion"`
	Curves         []PRCurve            `json:"pr_curves"`
	MicroCurve     PRCurve              `json:"micro_pr_curve"`
	Plots          map[string][]byte    `json:"plots,omitempty"`
	TrainedAt      time.Time            `json:"trained_at"`
	Duration       time.Duration        `json:"duration_ns"`
}

// Input carries the encoded labels and test scores of a fitted model
type Input struct {
	Classifier string
	Scorer     Scorer
	Classes    []string
	TrainTrue  []int
	TrainPred  []int
	TestTrue   []int
	TestPred   []int
	TestScores *mat.Dense
	Plots      bool
}

// Plot names inside Report.Plots
const (
	PlotPRCurves  = "pr_curves.png"
	PlotConfusion = "confusion.png"
)

// Evaluate computes the full report. Plot rendering is optional because it
// dominates the cost for small datasets.
func Evaluate(in Input) (Report, error) {
	n := len(in.Classes)
	confusion := NormalizeRows(Confusion(in.TestTrue, in.TestPred, n))

	r := Report{
		Classifier:     in.Classifier,
		Scorer:         in.Scorer,
		Classes:        append([]string(nil), in.Classes...),
		TrainScore:     in.Scorer.Score(in.TrainTrue, in.TrainPred, n),
		TestScore:      in.Scorer.Score(in.TestTrue, in.TestPred, n),
		TrainSize:      len(in.TrainTrue),
		TestSize:       len(in.TestTrue),
		Classification: NewClassificationReport(in.TestTrue, in.TestPred, in.Classes),
		Confusion:      toRows(confusion),
	}
	r.Curves, r.MicroCurve = ClassCurves(in.TestTrue, in.TestScores, in.Classes)

	if !in.Plots {
		return r, nil
	}
	pr, err := RenderPRCurves(r.Curves, r.MicroCurve)
	if err != nil {
		return Report{}, fmt.Errorf("render precision-recall curves: %w", err)
	}
	cm, err := RenderConfusion(confusion, in.Classes)
	if err != nil {
		return Report{}, fmt.Errorf("render confusion matrix: %w", err)
	}
	r.Plots = map[string][]byte{PlotPRCurves: pr, PlotConfusion: cm}
	return r, nil
}

// Summary is the short text form shown by the CLI and logs
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "classifier: %s\n", r.Classifier)
	fmt.Fprintf(&b, "%s (train): %.4f\n", r.Scorer, r.TrainScore)
	fmt.Fprintf(&b, "%s (test):  %.4f\n", r.Scorer, r.TestScore)
	if r.CVScore != nil {
		fmt.Fprintf(&b, "%s (cv):    %.4f\n", r.Scorer, *r.CVScore)
	}
	b.WriteString("\n")
	b.WriteString(r.Classification.String())
	return b.String()
}

func toRows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = append([]float64(nil), m.RawRowView(i)...)
	}
	return out
}

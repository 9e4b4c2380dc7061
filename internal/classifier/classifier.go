// Package classifier holds the multi-class models selectable by configuration.
// Every model implements the same capability set: fit on a dense feature
// matrix, predict hard labels, and produce a per-class score matrix.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Kind selects the concrete classifier variant
type Kind string

const (
	KindSVM      Kind = "svm"
	KindLogistic Kind = "logistic"
	KindBoosting Kind = "boosting"
	KindVoting   Kind = "voting"
)

// ClassWeight modes for margin classifiers
const (
	ClassWeightBalanced = "balanced"
	ClassWeightNone     = "none"
)

var (
	// ErrUnknownKind is returned for a classifier kind outside the supported set
	ErrUnknownKind = errors.New("unknown classifier kind")

	// ErrNotFitted is returned when predicting with an unfitted model
	ErrNotFitted = errors.New("classifier is not fitted")
)

// Classifier is the capability shared by all variants. Scores returns an
// n x classes matrix whose semantics depend on the variant: signed margins
// for the SVM, probabilities for the others.
type Classifier interface {
	Kind() Kind
	Fit(ctx context.Context, x *mat.Dense, y []int, nClasses int) error
	Predict(x *mat.Dense) []int
	Scores(x *mat.Dense) *mat.Dense
}

// ProbabilityEstimator is implemented by classifiers able to emit class
// probabilities, which the soft-voting ensemble averages.
type ProbabilityEstimator interface {
	PredictProba(x *mat.Dense) *mat.Dense
}

// SVMParams configures the linear-margin classifier
type SVMParams struct {
	C           float64
	ClassWeight string
	MaxIter     int
	Tol         float64
}

// LogisticParams configures multinomial logistic regression
type LogisticParams struct {
	C       float64
	MaxIter int
}

// BoostingParams configures gradient-boosted trees
type BoostingParams struct {
	NEstimators    int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
}

// Params is the full hyperparameter set of one training run
type Params struct {
	Kind     Kind
	Seed     uint64
	SVM      SVMParams
	Logistic LogisticParams
	Boosting BoostingParams
}

// New builds an unfitted classifier for p.Kind
func New(p Params) (Classifier, error) {
	switch p.Kind {
	case KindSVM:
		return NewLinearSVM(p.SVM, p.Seed), nil
	case KindLogistic:
		return NewLogistic(p.Logistic), nil
	case KindBoosting:
		return NewGradientBoosting(p.Boosting), nil
	case KindVoting:
		return NewSoftVoting(p), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
}

// Model is the persistable envelope of a fitted classifier; the pointer
// matching Kind is set.
type Model struct {
	Kind     Kind
	SVM      *LinearSVM
	Logistic *Logistic
	Boosting *GradientBoosting
	Voting   *SoftVoting
}

// Wrap stores a fitted classifier in its envelope
func Wrap(c Classifier) (Model, error) {
	switch m := c.(type) {
	case *LinearSVM:
		return Model{Kind: KindSVM, SVM: m}, nil
	case *Logistic:
		return Model{Kind: KindLogistic, Logistic: m}, nil
	case *GradientBoosting:
		return Model{Kind: KindBoosting, Boosting: m}, nil
	case *SoftVoting:
		return Model{Kind: KindVoting, Voting: m}, nil
	}
	return Model{}, fmt.Errorf("%w: %T", ErrUnknownKind, c)
}

// Classifier unwraps the envelope
func (m Model) Classifier() (Classifier, error) {
	switch {
	case m.Kind == KindSVM && m.SVM != nil:
		return m.SVM, nil
	case m.Kind == KindLogistic && m.Logistic != nil:
		return m.Logistic, nil
	case m.Kind == KindBoosting && m.Boosting != nil:
		return m.Boosting, nil
	case m.Kind == KindVoting && m.Voting != nil:
		return m.Voting, nil
	}
	return nil, fmt.Errorf("%w: envelope of kind %q is empty", ErrNotFitted, m.Kind)
}

// ArgmaxRows returns the column index of the largest value in every row.
// Ties resolve to the lowest index.
func ArgmaxRows(m *mat.Dense) []int {
	r, _ := m.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		out[i] = floats.MaxIdx(m.RawRowView(i))
	}
	return out
}

// SoftmaxRows maps every row of m to a probability distribution
func SoftmaxRows(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		softmaxInto(out.RawRowView(i), m.RawRowView(i))
	}
	return out
}

func softmaxInto(dst, z []float64) {
	maxZ := floats.Max(z)
	var sum float64
	for j, v := range z {
		dst[j] = math.Exp(v - maxZ)
		sum += dst[j]
	}
	floats.Scale(1/sum, dst)
}

// classWeights returns one weight per class; balanced weights are
// n / (classes * count_k) so that rare classes cost as much as common ones.
func classWeights(y []int, nClasses int, mode string) []float64 {
	w := make([]float64, nClasses)
	for k := range w {
		w[k] = 1
	}
	if mode != ClassWeightBalanced {
		return w
	}
	counts := make([]float64, nClasses)
	for _, label := range y {
		counts[label]++
	}
	for k := range w {
		if counts[k] > 0 {
			w[k] = float64(len(y)) / (float64(nClasses) * counts[k])
		}
	}
	return w
}

func checkFitInput(x *mat.Dense, y []int, nClasses int) error {
	if x == nil {
		return fmt.Errorf("fit: nil feature matrix")
	}
	n, _ := x.Dims()
	if n != len(y) {
		return fmt.Errorf("fit: %d rows but %d labels", n, len(y))
	}
	if nClasses < 2 {
		return fmt.Errorf("fit: need at least 2 classes, got %d", nClasses)
	}
	for _, label := range y {
		if label < 0 || label >= nClasses {
			return fmt.Errorf("fit: label %d outside [0, %d)", label, nClasses)
		}
	}
	return nil
}

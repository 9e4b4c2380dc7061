package classifier

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SoftVoting averages the class probabilities of a linear SVM, a logistic
// regression and a boosted ensemble. The SVM contributes softmax-squashed
// margins.
type SoftVoting struct {
	SVM      *LinearSVM
	Logistic *Logistic
	Boosting *GradientBoosting
}

// NewSoftVoting builds the ensemble members from p
func NewSoftVoting(p Params) *SoftVoting {
	return &SoftVoting{
		SVM:      NewLinearSVM(p.SVM, p.Seed),
		Logistic: NewLogistic(p.Logistic),
		Boosting: NewGradientBoosting(p.Boosting),
	}
}

func (v *SoftVoting) Kind() Kind { return KindVoting }

func (v *SoftVoting) members() []interface {
	Classifier
	ProbabilityEstimator
} {
	return []interface {
		Classifier
		ProbabilityEstimator
	}{v.SVM, v.Logistic, v.Boosting}
}

func (v *SoftVoting) Fit(ctx context.Context, x *mat.Dense, y []int, nClasses int) error {
	for _, m := range v.members() {
		if err := m.Fit(ctx, x, y, nClasses); err != nil {
			return fmt.Errorf("voting member %s: %w", m.Kind(), err)
		}
	}
	return nil
}

func (v *SoftVoting) PredictProba(x *mat.Dense) *mat.Dense {
	var sum *mat.Dense
	members := v.members()
	for _, m := range members {
		p := m.PredictProba(x)
		if sum == nil {
			sum = p
			continue
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(members)), sum)
	return sum
}

// Scores returns the averaged probabilities
func (v *SoftVoting) Scores(x *mat.Dense) *mat.Dense {
	return v.PredictProba(x)
}

func (v *SoftVoting) Predict(x *mat.Dense) []int {
	return ArgmaxRows(v.PredictProba(x))
}

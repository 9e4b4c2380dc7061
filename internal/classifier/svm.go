package classifier

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LinearSVM is a one-vs-rest linear support vector machine with hinge loss,
// trained by dual coordinate descent. The bias is learned as the weight of a
// constant feature.
type LinearSVM struct {
	Params  SVMParams
	Seed    uint64
	Classes int
	Weights [][]float64
	Bias    []float64
}

// NewLinearSVM creates an unfitted linear SVM
func NewLinearSVM(p SVMParams, seed uint64) *LinearSVM {
	if p.MaxIter <= 0 {
		p.MaxIter = 1000
	}
	if p.Tol <= 0 {
		p.Tol = 0.1
	}
	if p.C <= 0 {
		p.C = 1
	}
	return &LinearSVM{Params: p, Seed: seed}
}

func (s *LinearSVM) Kind() Kind { return KindSVM }

func (s *LinearSVM) Fit(ctx context.Context, x *mat.Dense, y []int, nClasses int) error {
	if err := checkFitInput(x, y, nClasses); err != nil {
		return err
	}
	n, d := x.Dims()

	cw := classWeights(y, nClasses, s.Params.ClassWeight)
	qii := make([]float64, n)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		qii[i] = floats.Dot(row, row) + 1
	}

	s.Classes = nClasses
	s.Weights = make([][]float64, nClasses)
	s.Bias = make([]float64, nClasses)

	for k := 0; k < nClasses; k++ {
		rng := rand.New(rand.NewPCG(s.Seed, uint64(k)))
		w := make([]float64, d)
		var b float64
		alpha := make([]float64, n)
		perm := make([]int, n)
		for i := range perm {
			perm[i] = i
		}

		for iter := 0; iter < s.Params.MaxIter; iter++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

			maxPG, minPG := math.Inf(-1), math.Inf(1)
			for _, i := range perm {
				yi := -1.0
				if y[i] == k {
					yi = 1
				}
				row := x.RawRowView(i)
				g := yi*(floats.Dot(w, row)+b) - 1
				upper := s.Params.C * cw[y[i]]

				var pg float64
				switch {
				case alpha[i] <= 0:
					pg = math.Min(g, 0)
				case alpha[i] >= upper:
					pg = math.Max(g, 0)
				default:
					pg = g
				}
				maxPG = math.Max(maxPG, pg)
				minPG = math.Min(minPG, pg)

				if math.Abs(pg) > 1e-12 {
					old := alpha[i]
					alpha[i] = math.Min(math.Max(old-g/qii[i], 0), upper)
					delta := (alpha[i] - old) * yi
					floats.AddScaled(w, delta, row)
					b += delta
				}
			}
			if maxPG-minPG < s.Params.Tol {
				break
			}
		}
		s.Weights[k] = w
		s.Bias[k] = b
	}
	return nil
}

// Scores returns the signed decision value of every one-vs-rest machine
func (s *LinearSVM) Scores(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, s.Classes, nil)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		for k := 0; k < s.Classes; k++ {
			out.Set(i, k, floats.Dot(s.Weights[k], row)+s.Bias[k])
		}
	}
	return out
}

func (s *LinearSVM) Predict(x *mat.Dense) []int {
	return ArgmaxRows(s.Scores(x))
}

// PredictProba squashes the decision values with a softmax. These are
// pseudo-probabilities: monotone in the margins but not calibrated.
func (s *LinearSVM) PredictProba(x *mat.Dense) *mat.Dense {
	return SoftmaxRows(s.Scores(x))
}

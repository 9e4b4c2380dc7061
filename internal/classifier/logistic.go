package classifier

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Logistic is L2-regularised multinomial logistic regression minimising
// C * sum(cross-entropy) + ||W||^2 / 2 with L-BFGS. The intercepts are not
// penalised.
type Logistic struct {
	Params  LogisticParams
	Classes int
	Weights [][]float64
	Bias    []float64
}

// NewLogistic creates an unfitted logistic regression
func NewLogistic(p LogisticParams) *Logistic {
	if p.C <= 0 {
		p.C = 1
	}
	if p.MaxIter <= 0 {
		p.MaxIter = 200
	}
	return &Logistic{Params: p}
}

func (l *Logistic) Kind() Kind { return KindLogistic }

func (l *Logistic) Fit(ctx context.Context, x *mat.Dense, y []int, nClasses int) error {
	if err := checkFitInput(x, y, nClasses); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n, d := x.Dims()
	k := nClasses
	c := l.Params.C

	// theta = [W (k x d) row-major | b (k)]
	unpack := func(theta []float64) (w, b []float64) {
		return theta[:k*d], theta[k*d:]
	}

	logits := make([]float64, k)
	probs := make([]float64, k)
	objective := func(theta, grad []float64) float64 {
		w, b := unpack(theta)
		var gw, gb []float64
		if grad != nil {
			for i := range grad {
				grad[i] = 0
			}
			gw, gb = unpack(grad)
		}

		var loss float64
		for i := 0; i < n; i++ {
			row := x.RawRowView(i)
			for j := 0; j < k; j++ {
				logits[j] = floats.Dot(w[j*d:(j+1)*d], row) + b[j]
			}
			maxZ := floats.Max(logits)
			var sum float64
			for j := range logits {
				sum += math.Exp(logits[j] - maxZ)
			}
			loss += maxZ + math.Log(sum) - logits[y[i]]

			if grad != nil {
				softmaxInto(probs, logits)
				probs[y[i]] -= 1
				for j := 0; j < k; j++ {
					floats.AddScaled(gw[j*d:(j+1)*d], c*probs[j], row)
					gb[j] += c * probs[j]
				}
			}
		}

		reg := floats.Dot(w, w) / 2
		if grad != nil {
			floats.Add(gw, w)
		}
		return c*loss + reg
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 { return objective(theta, nil) },
		Grad: func(grad, theta []float64) { objective(theta, grad) },
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   l.Params.MaxIter,
		GradientThreshold: 1e-6,
	}

	result, err := optimize.Minimize(problem, make([]float64, k*(d+1)), settings, &optimize.LBFGS{})
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if result == nil {
		return fmt.Errorf("logistic regression: %w", err)
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("logistic regression diverged")
		}
	}

	w, b := unpack(result.X)
	l.Classes = k
	l.Weights = make([][]float64, k)
	for j := 0; j < k; j++ {
		l.Weights[j] = append([]float64(nil), w[j*d:(j+1)*d]...)
	}
	l.Bias = append([]float64(nil), b...)
	return nil
}

func (l *Logistic) decision(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, l.Classes, nil)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		for j := 0; j < l.Classes; j++ {
			out.Set(i, j, floats.Dot(l.Weights[j], row)+l.Bias[j])
		}
	}
	return out
}

func (l *Logistic) PredictProba(x *mat.Dense) *mat.Dense {
	return SoftmaxRows(l.decision(x))
}

// Scores returns class probabilities
func (l *Logistic) Scores(x *mat.Dense) *mat.Dense {
	return l.PredictProba(x)
}

func (l *Logistic) Predict(x *mat.Dense) []int {
	return ArgmaxRows(l.decision(x))
}

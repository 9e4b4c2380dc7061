package classifier

import (
	"math"
	"math/rand/v2"
	"sort"
)

// GridConfig describes the hyperparameter space searched for a kind.
// Regularisation strengths are drawn log-uniformly from [CLow, CHigh].
type GridConfig struct {
	CLow          float64
	CHigh         float64
	CSamples      int
	LearningRates []float64
	MaxDepths     []int
}

// LogUniform draws n sorted samples whose base-10 logarithm is uniform on
// [log10(low), log10(high)].
func LogUniform(low, high float64, n int, rng *rand.Rand) []float64 {
	if n <= 0 || low <= 0 || high < low {
		return nil
	}
	a, b := math.Log10(low), math.Log10(high)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Pow(10, a+(b-a)*rng.Float64())
	}
	sort.Float64s(out)
	return out
}

// Candidates expands base into the candidate list for base.Kind. Sampling
// is seeded from base.Seed, so the same inputs give the same list.
func Candidates(base Params, g GridConfig) []Params {
	rng := rand.New(rand.NewPCG(base.Seed, 0x9e3779b97f4a7c15))
	cs := LogUniform(g.CLow, g.CHigh, g.CSamples, rng)

	var out []Params
	switch base.Kind {
	case KindSVM:
		for _, c := range cs {
			p := base
			p.SVM.C = c
			out = append(out, p)
		}
	case KindLogistic:
		for _, c := range cs {
			p := base
			p.Logistic.C = c
			out = append(out, p)
		}
	case KindBoosting:
		for _, lr := range orDefault(g.LearningRates, base.Boosting.LearningRate) {
			for _, depth := range orDefaultInt(g.MaxDepths, base.Boosting.MaxDepth) {
				p := base
				p.Boosting.LearningRate = lr
				p.Boosting.MaxDepth = depth
				out = append(out, p)
			}
		}
	case KindVoting:
		for _, c := range cs {
			for _, lr := range orDefault(g.LearningRates, base.Boosting.LearningRate) {
				p := base
				p.SVM.C = c
				p.Logistic.C = c
				p.Boosting.LearningRate = lr
				out = append(out, p)
			}
		}
	}
	if len(out) == 0 {
		out = append(out, base)
	}
	return out
}

func orDefault(values []float64, fallback float64) []float64 {
	if len(values) == 0 {
		return []float64{fallback}
	}
	return values
}

func orDefaultInt(values []int, fallback int) []int {
	if len(values) == 0 {
		return []int{fallback}
	}
	return values
}

package features

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	svdOversamples = 10
	svdPowerIters  = 5
)

// TruncatedSVD is a fitted rank-reducing projection of a sparse term matrix,
// computed with a seeded randomized range finder. The output always has
// Components columns; when the data supports fewer directions the remaining
// columns are zero so that train-time and predict-time widths agree.
type TruncatedSVD struct {
	Components int
	Rank       int
	Terms      int
	Basis      []float64 // Terms x Rank, row-major
}

// FitTruncatedSVD learns the top-k right singular vectors of rows (n x nTerms)
func FitTruncatedSVD(rows []sparseVec, nTerms, k int, seed uint64) (*TruncatedSVD, error) {
	out := &TruncatedSVD{Components: k, Terms: nTerms}

	maxRank := min(len(rows), nTerms)
	if maxRank == 0 || k <= 0 || nnz(rows) == 0 {
		return out, nil
	}
	l := min(k+svdOversamples, maxRank)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	omega := mat.NewDense(nTerms, l, nil)
	for i := 0; i < nTerms; i++ {
		row := omega.RawRowView(i)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
	}

	y := sparseMul(rows, omega)
	for it := 0; it < svdPowerIters; it++ {
		q, err := orthonormalize(y)
		if err != nil {
			return nil, err
		}
		qz, err := orthonormalize(sparseTMul(rows, q, nTerms))
		if err != nil {
			return nil, err
		}
		y = sparseMul(rows, qz)
	}
	q, err := orthonormalize(y)
	if err != nil {
		return nil, err
	}

	// b = A^T Q; its left singular vectors are the right singular vectors of A
	b := sparseTMul(rows, q, nTerms)
	var svd mat.SVD
	if ok := svd.Factorize(b, mat.SVDThin); !ok {
		return nil, fmt.Errorf("truncated svd: factorization did not converge")
	}
	values := svd.Values(nil)
	var u mat.Dense
	svd.UTo(&u)

	rank := 0
	for rank < min(k, len(values)) && values[rank] > 1e-10*values[0] {
		rank++
	}

	out.Rank = rank
	out.Basis = make([]float64, nTerms*rank)
	for j := 0; j < rank; j++ {
		col := mat.Col(nil, j, &u)
		if col[floats.MaxIdx(absAll(col))] < 0 {
			floats.Scale(-1, col)
		}
		for i, v := range col {
			out.Basis[i*rank+j] = v
		}
	}
	return out, nil
}

// Transform projects one sparse row onto the fitted components
func (s *TruncatedSVD) Transform(row sparseVec) []float64 {
	out := make([]float64, s.Components)
	for _, e := range row {
		if e.Index >= s.Terms {
			continue
		}
		base := s.Basis[e.Index*s.Rank : (e.Index+1)*s.Rank]
		floats.AddScaled(out[:s.Rank], e.Value, base)
	}
	return out
}

func nnz(rows []sparseVec) int {
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	return n
}

func absAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Abs(x)
	}
	return out
}

// orthonormalize returns an orthonormal basis for the column space of m
func orthonormalize(m *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return nil, fmt.Errorf("truncated svd: range finder did not converge")
	}
	var u mat.Dense
	svd.UTo(&u)
	return &u, nil
}

// sparseMul computes rows (n x terms) times m (terms x c)
func sparseMul(rows []sparseVec, m *mat.Dense) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, row := range rows {
		dst := out.RawRowView(i)
		for _, e := range row {
			floats.AddScaled(dst, e.Value, m.RawRowView(e.Index))
		}
	}
	return out
}

// sparseTMul computes rows^T (terms x n) times q (n x c)
func sparseTMul(rows []sparseVec, q *mat.Dense, nTerms int) *mat.Dense {
	_, c := q.Dims()
	out := mat.NewDense(nTerms, c, nil)
	for i, row := range rows {
		src := q.RawRowView(i)
		for _, e := range row {
			floats.AddScaled(out.RawRowView(e.Index), e.Value, src)
		}
	}
	return out
}

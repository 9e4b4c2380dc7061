package classifier

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// GradientBoosting fits one regression tree per class and stage on the
// multinomial deviance gradient, with Newton-step leaf values.
type GradientBoosting struct {
	Params  BoostingParams
	Classes int
	Init    []float64
	Trees   [][]Tree
}

// Tree is a binary regression tree stored as a flat node slice; node 0 is
// the root.
type Tree struct {
	Nodes []TreeNode
}

// TreeNode routes rows with x[Feature] <= Threshold to Left
type TreeNode struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// NewGradientBoosting creates an unfitted boosted ensemble
func NewGradientBoosting(p BoostingParams) *GradientBoosting {
	if p.NEstimators <= 0 {
		p.NEstimators = 100
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 3
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = 1
	}
	return &GradientBoosting{Params: p}
}

func (g *GradientBoosting) Kind() Kind { return KindBoosting }

func (g *GradientBoosting) Fit(ctx context.Context, x *mat.Dense, y []int, nClasses int) error {
	if err := checkFitInput(x, y, nClasses); err != nil {
		return err
	}
	n, _ := x.Dims()
	k := nClasses

	counts := make([]float64, k)
	for _, label := range y {
		counts[label]++
	}
	g.Classes = k
	g.Init = make([]float64, k)
	for j := range g.Init {
		g.Init[j] = math.Log(math.Max(counts[j]/float64(n), 1e-12))
	}

	raw := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		copy(raw.RawRowView(i), g.Init)
	}

	b := treeBuilder{
		x:        x,
		maxDepth: g.Params.MaxDepth,
		minLeaf:  g.Params.MinSamplesLeaf,
		scale:    float64(k-1) / float64(k),
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	residual := make([]float64, n)

	g.Trees = make([][]Tree, 0, g.Params.NEstimators)
	for m := 0; m < g.Params.NEstimators; m++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		probs := SoftmaxRows(raw)
		stage := make([]Tree, k)
		for j := 0; j < k; j++ {
			for i := 0; i < n; i++ {
				target := 0.0
				if y[i] == j {
					target = 1
				}
				residual[i] = target - probs.At(i, j)
			}
			b.residual = residual
			b.nodes = nil
			b.grow(append([]int(nil), all...), 0)
			stage[j] = Tree{Nodes: b.nodes}

			for i := 0; i < n; i++ {
				raw.Set(i, j, raw.At(i, j)+g.Params.LearningRate*stage[j].predict(x.RawRowView(i)))
			}
		}
		g.Trees = append(g.Trees, stage)
	}
	return nil
}

func (g *GradientBoosting) decision(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, g.Classes, nil)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		dst := out.RawRowView(i)
		copy(dst, g.Init)
		for _, stage := range g.Trees {
			for j, t := range stage {
				dst[j] += g.Params.LearningRate * t.predict(row)
			}
		}
	}
	return out
}

func (g *GradientBoosting) PredictProba(x *mat.Dense) *mat.Dense {
	return SoftmaxRows(g.decision(x))
}

// Scores returns class probabilities
func (g *GradientBoosting) Scores(x *mat.Dense) *mat.Dense {
	return g.PredictProba(x)
}

func (g *GradientBoosting) Predict(x *mat.Dense) []int {
	return ArgmaxRows(g.decision(x))
}

func (t Tree) predict(row []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for !t.Nodes[i].Leaf {
		if row[t.Nodes[i].Feature] <= t.Nodes[i].Threshold {
			i = t.Nodes[i].Left
		} else {
			i = t.Nodes[i].Right
		}
	}
	return t.Nodes[i].Value
}

type treeBuilder struct {
	x        *mat.Dense
	residual []float64
	maxDepth int
	minLeaf  int
	scale    float64
	nodes    []TreeNode
}

// grow appends the subtree over idx and returns its node index
func (b *treeBuilder) grow(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{})

	if depth < b.maxDepth && len(idx) >= 2*b.minLeaf {
		if feature, threshold, ok := b.bestSplit(idx); ok {
			var left, right []int
			for _, i := range idx {
				if b.x.At(i, feature) <= threshold {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			l := b.grow(left, depth+1)
			r := b.grow(right, depth+1)
			b.nodes[self] = TreeNode{Feature: feature, Threshold: threshold, Left: l, Right: r}
			return self
		}
	}

	b.nodes[self] = TreeNode{Leaf: true, Value: b.leafValue(idx)}
	return self
}

// bestSplit scans every feature for the threshold maximising the reduction
// in squared error of the residuals.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	_, d := b.x.Dims()
	n := len(idx)

	var total float64
	for _, i := range idx {
		total += b.residual[i]
	}
	parent := total * total / float64(n)

	bestGain := 1e-12
	bestFeature, bestThreshold, found := 0, 0.0, false
	order := make([]int, n)

	for f := 0; f < d; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.x.At(order[a], f) < b.x.At(order[c], f) })

		var leftSum float64
		for p := 0; p < n-1; p++ {
			leftSum += b.residual[order[p]]
			nl := p + 1
			nr := n - nl
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			lo, hi := b.x.At(order[p], f), b.x.At(order[p+1], f)
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr) - parent
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func (b *treeBuilder) leafValue(idx []int) float64 {
	var num, den float64
	for _, i := range idx {
		r := b.residual[i]
		num += r
		den += math.Abs(r) * (1 - math.Abs(r))
	}
	if den < 1e-12 {
		return 0
	}
	return b.scale * num / den
}

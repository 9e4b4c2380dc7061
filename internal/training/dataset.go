package training

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/cuongbtq/job-triage/internal/model"
)

// ErrInvalidDataset marks training input that no amount of retrying will fix
var ErrInvalidDataset = errors.New("invalid training dataset")

// Dataset is a labelled snapshot with its encoded targets
type Dataset struct {
	Records []model.JobRecord
	Y       []int
	Encoder *LabelEncoder
}

// NewDataset keeps the records whose label is in classes and encodes them.
// Classes with no records are dropped from the encoder; fewer than two
// remaining classes is an error.
func NewDataset(records []model.JobRecord, classes []model.Label) (*Dataset, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no labelled records", ErrInvalidDataset)
	}

	counts := make(map[model.Label]int)
	for _, r := range records {
		counts[r.Label]++
	}
	var present []model.Label
	for _, c := range classes {
		if counts[c] > 0 {
			present = append(present, c)
		}
	}
	if len(present) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 classes, found %d", ErrInvalidDataset, len(present))
	}

	enc, err := NewLabelEncoder(present)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}

	ds := &Dataset{Encoder: enc}
	for _, r := range records {
		code, err := enc.Encode(r.Label)
		if err != nil {
			continue
		}
		ds.Records = append(ds.Records, r)
		ds.Y = append(ds.Y, code)
	}
	return ds, nil
}

// Subset returns the records and targets at idx
func (d *Dataset) Subset(idx []int) ([]model.JobRecord, []int) {
	recs := make([]model.JobRecord, len(idx))
	y := make([]int, len(idx))
	for i, j := range idx {
		recs[i] = d.Records[j]
		y[i] = d.Y[j]
	}
	return recs, y
}

// classIndices groups row indices by class code, ascending within a class
func classIndices(y []int, nClasses int) [][]int {
	groups := make([][]int, nClasses)
	for i, c := range y {
		groups[c] = append(groups[c], i)
	}
	return groups
}

// StratifiedSplit shuffles each class with a seeded generator and moves
// round(count*testRatio) of it to the test partition. A class with at least
// two records always contributes to both partitions.
func StratifiedSplit(y []int, nClasses int, testRatio float64, seed uint64) (train, test []int) {
	rng := rand.New(rand.NewPCG(seed, 0))
	for _, idx := range classIndices(y, nClasses) {
		idx = append([]int(nil), idx...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(float64(len(idx)) * testRatio))
		if len(idx) >= 2 {
			nTest = min(max(nTest, 1), len(idx)-1)
		} else {
			nTest = 0
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// StratifiedKFold assigns every row to one of k folds, dealing each
// shuffled class round-robin. It returns the held-out indices per fold.
func StratifiedKFold(y []int, nClasses, k int, seed uint64) [][]int {
	rng := rand.New(rand.NewPCG(seed, 1))
	folds := make([][]int, k)
	next := 0
	for _, idx := range classIndices(y, nClasses) {
		idx = append([]int(nil), idx...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for _, i := range idx {
			folds[next%k] = append(folds[next%k], i)
			next++
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds
}

// complement returns the indices in [0, n) that are not in held
func complement(n int, held []int) []int {
	skip := make(map[int]struct{}, len(held))
	for _, i := range held {
		skip[i] = struct{}{}
	}
	out := make([]int, 0, n-len(held))
	for i := 0; i < n; i++ {
		if _, ok := skip[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// checkFolds fails when a class has fewer training records than folds
func checkFolds(y []int, enc *LabelEncoder, folds int) error {
	for c, idx := range classIndices(y, enc.Len()) {
		if len(idx) < folds {
			return fmt.Errorf("%w: class %s has %d training records, %d-fold cross-validation needs at least %d",
				ErrInvalidDataset, enc.Decode(c), len(idx), folds, folds)
		}
	}
	return nil
}

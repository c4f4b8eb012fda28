package tune

import (
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/penreg/dataset"
	"github.com/YuminosukeSato/penreg/pkg/errors"
)

// Fold holds row positions into the training set. Analysis rows fit the
// model, Assessment rows score it.
type Fold struct {
	ID         int
	Analysis   []int
	Assessment []int
}

// FoldSet is a k-fold partition of the training rows. Every row is assessed
// in exactly one fold and fold sizes differ by at most one.
type FoldSet struct {
	K     int
	Seed  uint64
	NRows int
	Folds []Fold
}

// NewFoldSet shuffles n rows with seed and cuts them into k contiguous
// groups, the first n mod k groups one row larger.
func NewFoldSet(n, k int, seed uint64) (*FoldSet, error) {
	if err := validateFolds(n, k); err != nil {
		return nil, err
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	r := rand.New(rand.NewPCG(seed, seed))
	r.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	assign := make([]int, n)
	foldSize := n / k
	remainder := n % k
	current := 0
	for f := 0; f < k; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			assign[idx] = f
		}
		current += size
	}
	return buildFoldSet(assign, k, seed), nil
}

// NewStratifiedFoldSet bins y into strata, shuffles each stratum with seed and
// deals the rows to folds in turn, so every fold sees every stratum and
// overall fold sizes still differ by at most one.
func NewStratifiedFoldSet(y []float64, k int, seed uint64, strata dataset.StrataOptions) (*FoldSet, error) {
	n := len(y)
	if err := validateFolds(n, k); err != nil {
		return nil, err
	}
	labels, nStrata, err := dataset.Strata(y, strata)
	if err != nil {
		return nil, err
	}
	groups := make([][]int, nStrata)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}

	r := rand.New(rand.NewPCG(seed, seed))
	assign := make([]int, n)
	next := 0
	for _, g := range groups {
		r.Shuffle(len(g), func(i, j int) {
			g[i], g[j] = g[j], g[i]
		})
		for _, idx := range g {
			assign[idx] = next % k
			next++
		}
	}
	return buildFoldSet(assign, k, seed), nil
}

func validateFolds(n, k int) error {
	if k < 2 {
		return errors.NewValidationError("folds", "at least two folds are required", k)
	}
	if k > n {
		return errors.NewValidationError("folds", "more folds than training rows", k)
	}
	return nil
}

func buildFoldSet(assign []int, k int, seed uint64) *FoldSet {
	fs := &FoldSet{K: k, Seed: seed, NRows: len(assign), Folds: make([]Fold, k)}
	for f := range fs.Folds {
		fs.Folds[f].ID = f
	}
	for idx, f := range assign {
		fs.Folds[f].Assessment = append(fs.Folds[f].Assessment, idx)
		for g := range fs.Folds {
			if g != f {
				fs.Folds[g].Analysis = append(fs.Folds[g].Analysis, idx)
			}
		}
	}
	for f := range fs.Folds {
		sort.Ints(fs.Folds[f].Assessment)
		sort.Ints(fs.Folds[f].Analysis)
	}
	return fs
}

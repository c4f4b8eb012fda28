package dataset

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

// Split is a disjoint Train/Test partition of a Dataset. TrainIndex and
// TestIndex hold row positions in the source, ascending.
type Split struct {
	Train      *Dataset
	Test       *Dataset
	TrainIndex []int
	TestIndex  []int
	// Strata is the number of target strata used.
	Strata int
}

// SplitOptions configures StratifiedSplit.
type SplitOptions struct {
	// TrainFraction is the share of rows assigned to Train, in (0, 1).
	TrainFraction float64
	Seed          uint64
	Strata        StrataOptions
}

// DefaultSplitOptions returns a 70/30 split with seed 42 and default strata.
func DefaultSplitOptions() SplitOptions {
	return SplitOptions{TrainFraction: 0.7, Seed: 42, Strata: DefaultStrataOptions()}
}

// StratifiedSplit partitions ds into Train and Test, stratifying on the binned
// target so that every stratum contributes close to TrainFraction of its rows.
// |Train| is exactly round(TrainFraction·n) and the result depends only on ds,
// the target and opts.
func StratifiedSplit(ds *Dataset, target string, opts SplitOptions) (*Split, error) {
	p := opts.TrainFraction
	if math.IsNaN(p) || p <= 0 || p >= 1 {
		return nil, errors.NewValidationError("train_fraction", "must be within (0, 1)", p)
	}
	col, err := ds.Column(target)
	if err != nil {
		return nil, errors.NewUnknownColumnError("split", target, ds.Names())
	}
	if col.Kind != Numeric {
		return nil, errors.NewValidationError("target", "target column must be numeric", target)
	}
	n := ds.NumRows()
	if n < 2 {
		return nil, errors.NewValidationError("rows", "at least two rows are required to split", n)
	}
	nTrain := int(math.Round(p * float64(n)))
	if nTrain < 1 || nTrain > n-1 {
		return nil, errors.NewValidationError("train_fraction", "leaves train or test empty", p)
	}

	labels, k, err := Strata(col.Numbers, opts.Strata)
	if err != nil {
		return nil, err
	}
	groups := groupByStratum(labels, k)
	quota := allocate(groups, p, nTrain)

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	trainIdx := make([]int, 0, nTrain)
	testIdx := make([]int, 0, n-nTrain)
	for s, rows := range groups {
		rows = append([]int(nil), rows...)
		rng.Shuffle(len(rows), func(i, j int) {
			rows[i], rows[j] = rows[j], rows[i]
		})
		trainIdx = append(trainIdx, rows[:quota[s]]...)
		testIdx = append(testIdx, rows[quota[s]:]...)
	}
	sort.Ints(trainIdx)
	sort.Ints(testIdx)

	train, err := ds.Subset(trainIdx)
	if err != nil {
		return nil, err
	}
	test, err := ds.Subset(testIdx)
	if err != nil {
		return nil, err
	}
	return &Split{Train: train, Test: test, TrainIndex: trainIdx, TestIndex: testIdx, Strata: k}, nil
}

// groupByStratum lists row positions per stratum in ascending order.
func groupByStratum(labels []int, k int) [][]int {
	groups := make([][]int, k)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}
	return groups
}

// allocate distributes total train rows across strata by the largest
// remainder method: each stratum gets floor(p·n_s) and the leftover rows go
// to the largest fractional parts, lower stratum first on ties.
func allocate(groups [][]int, p float64, total int) []int {
	quota := make([]int, len(groups))
	frac := make([]float64, len(groups))
	assigned := 0
	for s, g := range groups {
		exact := p * float64(len(g))
		quota[s] = int(math.Floor(exact))
		frac[s] = exact - float64(quota[s])
		assigned += quota[s]
	}

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return frac[order[a]] > frac[order[b]]
	})

	// total と Σfloor の差は層の数未満
	for i := 0; assigned < total && i < len(order); i++ {
		s := order[i]
		if quota[s] < len(groups[s]) {
			quota[s]++
			assigned++
		}
	}
	for i := len(order) - 1; assigned > total && i >= 0; i-- {
		s := order[i]
		if quota[s] > 0 {
			quota[s]--
			assigned--
		}
	}
	return quota
}

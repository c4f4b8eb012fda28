package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

// StrataOptions controls how a numeric target is binned for stratified sampling.
type StrataOptions struct {
	// Breaks is the number of quantile bins requested.
	Breaks int
	// Depth is the minimum expected number of rows per bin. When n/Breaks is
	// below Depth the number of bins is reduced to floor(n/Depth).
	Depth int
	// Pool is the minimum share of rows a bin must hold; smaller bins are
	// merged into a neighbour.
	Pool float64
	// NUnique is the number of distinct values at or below which the target is
	// treated as discrete and each value forms its own stratum.
	NUnique int
}

// DefaultStrataOptions returns Breaks 4, Depth 20, Pool 0.1, NUnique 5.
func DefaultStrataOptions() StrataOptions {
	return StrataOptions{Breaks: 4, Depth: 20, Pool: 0.1, NUnique: 5}
}

func (o StrataOptions) validate() error {
	if o.Breaks < 1 {
		return errors.NewValidationError("strata.breaks", "must be at least 1", o.Breaks)
	}
	if o.Depth < 1 {
		return errors.NewValidationError("strata.depth", "must be at least 1", o.Depth)
	}
	if o.Pool < 0 || o.Pool >= 1 || math.IsNaN(o.Pool) {
		return errors.NewValidationError("strata.pool", "must be within [0, 1)", o.Pool)
	}
	if o.NUnique < 0 {
		return errors.NewValidationError("strata.nunique", "must not be negative", o.NUnique)
	}
	return nil
}

// Strata assigns every value a stratum label in [0, k). Labels increase with
// the value so neighbouring strata cover neighbouring ranges.
func Strata(values []float64, opts StrataOptions) ([]int, int, error) {
	if err := opts.validate(); err != nil {
		return nil, 0, err
	}
	n := len(values)
	labels := make([]int, n)
	if n == 0 {
		return labels, 0, nil
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var cuts []float64
	uniq := uniqueSorted(sorted)
	if len(uniq) <= opts.NUnique {
		// 離散値はそれぞれを層にする
		cuts = uniq
	} else {
		breaks := opts.Breaks
		if n/breaks < opts.Depth {
			breaks = min(breaks, n/opts.Depth)
		}
		if breaks < 2 {
			return labels, 1, nil
		}
		cuts = make([]float64, 0, breaks)
		for b := 1; b <= breaks; b++ {
			q := stat.Quantile(float64(b)/float64(breaks), stat.Empirical, sorted, nil)
			if len(cuts) == 0 || q > cuts[len(cuts)-1] {
				cuts = append(cuts, q)
			}
		}
		cuts[len(cuts)-1] = sorted[n-1]
	}

	// 各値は v <= cuts[k] となる最小の k の層に入る
	for i, v := range values {
		labels[i] = sort.SearchFloat64s(cuts, v)
	}
	k := pool(labels, len(cuts), opts.Pool)
	return labels, k, nil
}

func uniqueSorted(sorted []float64) []float64 {
	out := make([]float64, 0, len(sorted))
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// pool merges strata holding less than share of the rows into an adjacent
// stratum and relabels them densely. It returns the resulting count.
func pool(labels []int, k int, share float64) int {
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}
	minCount := share * float64(len(labels))

	// target[s] は統合先の層
	target := make([]int, k)
	for s := range target {
		target[s] = s
	}
	for {
		small := -1
		live := 0
		for s := 0; s < k; s++ {
			if target[s] != s || counts[s] == 0 {
				continue
			}
			live++
			if small < 0 && float64(counts[s]) < minCount {
				small = s
			}
		}
		if small < 0 || live < 2 {
			break
		}
		into := nextLive(target, counts, small, +1)
		if into < 0 {
			into = nextLive(target, counts, small, -1)
		}
		counts[into] += counts[small]
		counts[small] = 0
		for s := range target {
			if target[s] == small {
				target[s] = into
			}
		}
	}

	dense := make(map[int]int, k)
	for s := 0; s < k; s++ {
		if target[s] == s && counts[s] > 0 {
			dense[s] = len(dense)
		}
	}
	for i, l := range labels {
		labels[i] = dense[target[l]]
	}
	return len(dense)
}

func nextLive(target, counts []int, from, step int) int {
	for s := from + step; s >= 0 && s < len(target); s += step {
		if target[s] == s && counts[s] > 0 {
			return s
		}
	}
	return -1
}

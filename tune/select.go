package tune

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

// BestConfig holds the selected record for each metric. ByRSQ is nil when no
// R² record exists (every assessment fold had a constant target).
type BestConfig struct {
	ByRMSE MetricRecord  `json:"by_rmse"`
	ByRSQ  *MetricRecord `json:"by_rsq,omitempty"`
}

// Disagree reports whether the two metrics picked different points.
func (b *BestConfig) Disagree() bool {
	return b.ByRSQ != nil && b.ByRSQ.Point() != b.ByRMSE.Point()
}

// SelectBest returns the record of metric with the smallest (Minimize) or
// largest (Maximize) mean. Exact ties go to the smaller |mixture|, then the
// smaller |penalty|, preferring the simpler model.
func SelectBest(records []MetricRecord, metric Metric, direction Direction) (MetricRecord, error) {
	if metric != RMSE && metric != RSQ {
		return MetricRecord{}, errors.NewValidationError("metric", "unknown metric", string(metric))
	}
	if direction != Minimize && direction != Maximize {
		return MetricRecord{}, errors.NewValidationError("direction", "unknown direction", int(direction))
	}
	found := false
	var best MetricRecord
	for _, r := range records {
		if r.Metric != metric || math.IsNaN(r.Mean) {
			continue
		}
		if !found || better(r, best, direction) {
			best = r
			found = true
		}
	}
	if !found {
		return MetricRecord{}, errors.NewValidationError("records", "no records for metric", string(metric))
	}
	return best, nil
}

// better orders records by mean in direction, then by simplicity.
func better(a, b MetricRecord, d Direction) bool {
	if a.Mean != b.Mean {
		return isBetter(a.Mean, b.Mean, d)
	}
	if am, bm := math.Abs(a.Mixture), math.Abs(b.Mixture); am != bm {
		return am < bm
	}
	return math.Abs(a.Penalty) < math.Abs(b.Penalty)
}

// Sorted returns up to n records of metric ordered best first, using the
// same tie-break as SelectBest. n <= 0 returns all of them.
func (r *Result) Sorted(metric Metric, direction Direction, n int) []MetricRecord {
	out := r.ForMetric(metric)
	sort.SliceStable(out, func(i, j int) bool {
		return better(out[i], out[j], direction)
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

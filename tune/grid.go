// Package tune runs the elastic net grid search under k-fold cross-validation
// and selects the best (penalty, mixture) configuration.
package tune

import (
	"math"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

// Range describes one axis of the grid. When Values is set it is used as-is
// and must not repeat a value; otherwise the axis is Min, Min+Step, ... up to
// and including Max.
type Range struct {
	Min    float64   `json:"min" mapstructure:"min"`
	Max    float64   `json:"max" mapstructure:"max"`
	Step   float64   `json:"step" mapstructure:"step"`
	Values []float64 `json:"values,omitempty" mapstructure:"values"`
}

// Generate expands the range. Values are computed as Min + i·Step and rounded
// to 12 decimals so repeated additions never drift past Max.
func (r Range) Generate(name string) ([]float64, error) {
	if len(r.Values) > 0 {
		seen := make(map[float64]bool, len(r.Values))
		for _, v := range r.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewValidationError(name, "values must be finite", v)
			}
			if seen[v] {
				return nil, errors.NewValidationError(name, "values must be unique", v)
			}
			seen[v] = true
		}
		return append([]float64(nil), r.Values...), nil
	}
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
		return nil, errors.NewValidationError(name, "bounds must be finite", r)
	}
	if !(r.Step > 0) {
		return nil, errors.NewValidationError(name+".step", "must be positive", r.Step)
	}
	if r.Max < r.Min {
		return nil, errors.NewValidationError(name, "max is below min (empty grid)", r)
	}
	n := int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round((r.Min+float64(i)*r.Step)*1e12) / 1e12
	}
	return out, nil
}

// Point is one (penalty, mixture) pair.
type Point struct {
	Penalty float64 `json:"penalty"`
	Mixture float64 `json:"mixture"`
}

// Grid is the Cartesian product of penalty (λ ≥ 0) and mixture (α ∈ [0,1]).
type Grid struct {
	Penalty Range `json:"penalty" mapstructure:"penalty"`
	Mixture Range `json:"mixture" mapstructure:"mixture"`
}

// DefaultGrid is penalty 0..10 step 1 by mixture 0..1 step 0.1, 121 points.
func DefaultGrid() Grid {
	return Grid{
		Penalty: Range{Min: 0, Max: 10, Step: 1},
		Mixture: Range{Min: 0, Max: 1, Step: 0.1},
	}
}

// Points lists the grid penalty-major: every mixture for the first penalty,
// then the next penalty.
func (g Grid) Points() ([]Point, error) {
	penalties, err := g.Penalty.Generate("penalty")
	if err != nil {
		return nil, err
	}
	mixtures, err := g.Mixture.Generate("mixture")
	if err != nil {
		return nil, err
	}
	for _, p := range penalties {
		if p < 0 {
			return nil, errors.NewValidationError("penalty", "must be non-negative", p)
		}
	}
	for _, m := range mixtures {
		if m < 0 || m > 1 {
			return nil, errors.NewValidationError("mixture", "must be within [0, 1]", m)
		}
	}

	points := make([]Point, 0, len(penalties)*len(mixtures))
	for _, p := range penalties {
		for _, m := range mixtures {
			points = append(points, Point{Penalty: p, Mixture: m})
		}
	}
	if len(points) == 0 {
		return nil, errors.NewValidationError("grid", "grid is empty", 0)
	}
	return points, nil
}

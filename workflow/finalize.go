package workflow

import (
	"encoding/json"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/penreg/core/model"
	"github.com/YuminosukeSato/penreg/dataset"
	"github.com/YuminosukeSato/penreg/linear"
	"github.com/YuminosukeSato/penreg/metrics"
	"github.com/YuminosukeSato/penreg/pkg/errors"
	"github.com/YuminosukeSato/penreg/preprocessing"
	"github.com/YuminosukeSato/penreg/tune"
)

// Evaluation is the one-time score of the final model on the test set.
// RSQ is NaN and RSQDefined false when the test targets are constant.
type Evaluation struct {
	RMSE        float64   `json:"rmse"`
	RSQ         float64   `json:"rsq"`
	RSQDefined  bool      `json:"rsq_defined"`
	N           int       `json:"n"`
	Predictions []float64 `json:"-"`
}

// MarshalJSON writes an undefined RSQ as null.
func (e Evaluation) MarshalJSON() ([]byte, error) {
	var rsq *float64
	if e.RSQDefined {
		rsq = &e.RSQ
	}
	return json.Marshal(struct {
		RMSE float64  `json:"rmse"`
		RSQ  *float64 `json:"rsq"`
		N    int      `json:"n"`
	}{e.RMSE, rsq, e.N})
}

// Coefficient is one fitted slope on the transformed scale.
type Coefficient struct {
	Term     string  `json:"term" db:"term"`
	Estimate float64 `json:"estimate" db:"estimate"`
}

// Importance is |β·sd(x)| for one predictor, signed by the direction of β.
type Importance struct {
	Variable   string  `json:"variable"`
	Importance float64 `json:"importance"`
	Sign       string  `json:"sign"`
}

const (
	SignPositive = "POS"
	SignNegative = "NEG"
)

// FinalModel is the selected configuration refit on the whole training set.
// The test set is scored at most once; Evaluate caches its first result.
type FinalModel struct {
	Point    tune.Point
	Features []string

	recipe *preprocessing.Recipe
	model  model.Regressor
	test   *dataset.Dataset
	sd     []float64
	nTrain int

	once    sync.Once
	eval    Evaluation
	evalErr error
}

// Finalize fits factory(point) on the transformed train set. test is kept for
// Evaluate and is not touched here.
func Finalize(point tune.Point, train, test *dataset.Dataset, recipe *preprocessing.Recipe, factory model.RegressorFactory) (*FinalModel, error) {
	if recipe == nil || !recipe.IsFitted() {
		return nil, errors.NewNotFittedError("Recipe", "Finalize")
	}
	if train == nil || test == nil {
		return nil, errors.NewValidationError("data", "train and test sets are required", nil)
	}
	if factory == nil {
		factory = linear.Factory()
	}
	features := recipe.Features()
	baked, err := recipe.Apply(train)
	if err != nil {
		return nil, errors.Wrap(err, "finalize: transform train")
	}
	X, err := baked.Matrix(features)
	if err != nil {
		return nil, err
	}
	y, err := baked.Target(recipe.Target())
	if err != nil {
		return nil, err
	}

	m := factory(point.Penalty, point.Mixture)
	err = errors.SafeExecute("workflow.finalize", func() error {
		return m.Fit(X, y)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "finalize: fit penalty=%g mixture=%g", point.Penalty, point.Mixture)
	}

	n, p := X.Dims()
	sd := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		if n > 1 {
			sd[j] = stat.StdDev(col, nil)
		}
	}

	return &FinalModel{
		Point:    point,
		Features: features,
		recipe:   recipe,
		model:    m,
		test:     test,
		sd:       sd,
		nTrain:   n,
	}, nil
}

// Evaluate predicts the test set and scores it. Only the first call does the
// work; later calls return the same values.
func (f *FinalModel) Evaluate() (Evaluation, error) {
	f.once.Do(func() {
		f.eval, f.evalErr = f.evaluate()
	})
	if f.evalErr != nil {
		return Evaluation{}, f.evalErr
	}
	out := f.eval
	out.Predictions = append([]float64(nil), f.eval.Predictions...)
	return out, nil
}

func (f *FinalModel) evaluate() (Evaluation, error) {
	baked, err := f.recipe.Apply(f.test)
	if err != nil {
		return Evaluation{}, errors.Wrap(err, "finalize: transform test")
	}
	X, err := baked.Matrix(f.Features)
	if err != nil {
		return Evaluation{}, err
	}
	y, err := baked.Target(f.recipe.Target())
	if err != nil {
		return Evaluation{}, err
	}
	pred, err := f.model.Predict(X)
	if err != nil {
		return Evaluation{}, err
	}

	ev := Evaluation{N: y.Len(), RSQ: math.NaN()}
	ev.RMSE, err = metrics.RMSE(y, pred)
	if err != nil {
		return Evaluation{}, err
	}
	rsq, err := metrics.R2Score(y, pred)
	switch {
	case err == nil:
		ev.RSQ, ev.RSQDefined = rsq, true
	case errors.As(err, new(*errors.UndefinedMetricWarning)):
		errors.Warn(err)
	default:
		return Evaluation{}, err
	}
	ev.Predictions = make([]float64, pred.Len())
	for i := range ev.Predictions {
		ev.Predictions[i] = pred.AtVec(i)
	}
	return ev, nil
}

// Predict applies the recipe to ds and predicts it. ds may omit the target.
func (f *FinalModel) Predict(ds *dataset.Dataset) (*mat.VecDense, error) {
	baked, err := f.recipe.Apply(ds)
	if err != nil {
		return nil, err
	}
	X, err := baked.Matrix(f.Features)
	if err != nil {
		return nil, err
	}
	return f.model.Predict(X)
}

func (f *FinalModel) Intercept() float64 { return f.model.Intercept() }

// NTrain is the number of rows the model was fit on.
func (f *FinalModel) NTrain() int { return f.nTrain }

// Coefficients lists the slopes ordered by |estimate|, largest first. Ties
// are ordered by term name.
func (f *FinalModel) Coefficients() []Coefficient {
	coef := f.model.Coef()
	out := make([]Coefficient, len(coef))
	for j, c := range coef {
		out[j] = Coefficient{Term: f.Features[j], Estimate: c}
	}
	sort.SliceStable(out, func(a, b int) bool {
		ma, mb := math.Abs(out[a].Estimate), math.Abs(out[b].Estimate)
		if ma != mb {
			return ma > mb
		}
		return out[a].Term < out[b].Term
	})
	return out
}

// Importance ranks predictors by the magnitude of the standardized
// coefficient β·sd(x), sd taken over the transformed train set.
func (f *FinalModel) Importance() []Importance {
	coef := f.model.Coef()
	out := make([]Importance, len(coef))
	for j, c := range coef {
		sign := SignPositive
		if c < 0 {
			sign = SignNegative
		}
		out[j] = Importance{Variable: f.Features[j], Importance: math.Abs(c * f.sd[j]), Sign: sign}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Importance != out[b].Importance {
			return out[a].Importance > out[b].Importance
		}
		return out[a].Variable < out[b].Variable
	})
	return out
}

// Weights exports the fitted coefficients with their checksum.
func (f *FinalModel) Weights() (*model.ModelWeights, error) {
	if exp, ok := f.model.(interface {
		ExportWeights([]string) (*model.ModelWeights, error)
	}); ok {
		return exp.ExportWeights(f.Features)
	}
	return model.NewModelWeights("Regressor", f.Features, f.model.Coef(), f.model.Intercept(), map[string]float64{
		"penalty": f.Point.Penalty,
		"mixture": f.Point.Mixture,
	}), nil
}

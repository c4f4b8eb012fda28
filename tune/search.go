package tune

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/penreg/core/model"
	"github.com/YuminosukeSato/penreg/core/parallel"
	"github.com/YuminosukeSato/penreg/dataset"
	"github.com/YuminosukeSato/penreg/linear"
	"github.com/YuminosukeSato/penreg/metrics"
	"github.com/YuminosukeSato/penreg/pkg/errors"
	"github.com/YuminosukeSato/penreg/pkg/log"
	"github.com/YuminosukeSato/penreg/preprocessing"
)

// Metric names a cross-validated performance measure.
type Metric string

const (
	// RMSE is the root mean squared error.
	RMSE Metric = "rmse"
	// RSQ is the coefficient of determination R².
	RSQ Metric = "rsq"
)

// Metrics lists the metrics every grid point is scored on, in record order.
var Metrics = []Metric{RMSE, RSQ}

// Direction tells SelectBest whether smaller or larger is better.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

func (d Direction) String() string {
	if d == Maximize {
		return "maximize"
	}
	return "minimize"
}

// DirectionOf returns the natural direction of a metric.
func DirectionOf(m Metric) Direction {
	if m == RSQ {
		return Maximize
	}
	return Minimize
}

// MetricRecord aggregates one metric for one grid point across folds.
// StdErr is the sample standard deviation divided by √N and is 0 when N is 1.
type MetricRecord struct {
	Penalty float64 `json:"penalty" db:"penalty"`
	Mixture float64 `json:"mixture" db:"mixture"`
	Metric  Metric  `json:"metric" db:"metric"`
	Mean    float64 `json:"mean" db:"mean"`
	StdErr  float64 `json:"std_err" db:"std_err"`
	// N is the number of folds that contributed.
	N int `json:"n" db:"n"`
	// Excluded is the number of folds whose fit failed for this point.
	Excluded int `json:"excluded" db:"excluded"`
}

// Point returns the grid point of the record.
func (r MetricRecord) Point() Point {
	return Point{Penalty: r.Penalty, Mixture: r.Mixture}
}

// Observer receives one call per finished fit unit. It must be safe for
// concurrent use.
type Observer interface {
	ObserveFit(p Point, fold int, elapsed time.Duration, err error)
}

// Options configures Search.
type Options struct {
	// Workers bounds the number of concurrent fit units. Values < 1 mean one
	// per CPU core.
	Workers int
	// Factory builds the regressor for a grid point. Defaults to linear.Factory().
	Factory model.RegressorFactory
	// Logger receives progress and warnings. Defaults to log.GetLogger().
	Logger log.Logger
	// Observer is notified after every fit unit. Optional.
	Observer Observer
}

// Result is the outcome of a grid search.
type Result struct {
	Records []MetricRecord
	Points  []Point
	// Omitted lists grid points for which every fold failed.
	Omitted []Point
	// Excluded counts failed fold evaluations across all points.
	Excluded int
	Folds    int
	Features []string
	Elapsed  time.Duration
}

// unit is the outcome of fitting one grid point on one fold.
type unit struct {
	rmse    float64
	rsq     float64
	rsqOK   bool
	err     error
	nIter   int
	elapsed time.Duration
}

// partition is a fold's transformed analysis and assessment data.
type partition struct {
	X, XAssess *mat.Dense
	y, yAssess *mat.VecDense
}

// Search fits every grid point on every fold and aggregates RMSE and R².
// Inputs are validated before any fitting starts. Folds whose fit fails
// (non-convergence, numerical failure or panic) are left out of the mean and
// counted; a point with no successful fold is omitted and logged.
func Search(ctx context.Context, train *dataset.Dataset, recipe *preprocessing.Recipe, grid Grid, folds *FoldSet, opts Options) (*Result, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	logger = logger.With(log.ComponentKey, "tune", log.OperationKey, log.OperationSearch)
	factory := opts.Factory
	if factory == nil {
		factory = linear.Factory()
	}

	points, parts, features, err := prepare(train, recipe, grid, folds)
	if err != nil {
		return nil, err
	}
	k := len(parts)
	workers := parallel.Workers(opts.Workers, len(points)*k)
	logger.Info("grid search started",
		log.GridSizeKey, len(points),
		log.FoldsKey, k,
		log.WorkersKey, workers,
		log.FeaturesKey, len(features),
	)

	slots := make([][]unit, len(points))
	for i := range slots {
		slots[i] = make([]unit, k)
	}

	err = parallel.ForEach(ctx, len(points)*k, workers, func(i int) {
		pi, f := i/k, i%k
		if ctx.Err() != nil {
			slots[pi][f].err = ctx.Err()
			return
		}
		u := fitUnit(factory, points[pi], parts[f])
		slots[pi][f] = u
		if opts.Observer != nil {
			opts.Observer.ObserveFit(points[pi], f, u.elapsed, u.err)
		}
	})
	if err != nil {
		logger.Warn("grid search cancelled", log.DurationMsKey, time.Since(start).Milliseconds())
		return nil, err
	}

	res := reduce(points, slots, logger)
	res.Folds = k
	res.Features = features
	res.Elapsed = time.Since(start)
	logger.Info("grid search finished",
		log.GridSizeKey, len(points),
		log.ExcludedKey, res.Excluded,
		log.RecordsKey, len(res.Records),
		log.DurationMsKey, res.Elapsed.Milliseconds(),
	)
	return res, nil
}

// prepare validates the inputs and transforms each fold once.
func prepare(train *dataset.Dataset, recipe *preprocessing.Recipe, grid Grid, folds *FoldSet) ([]Point, []partition, []string, error) {
	if recipe == nil || !recipe.IsFitted() {
		return nil, nil, nil, errors.NewNotFittedError("Recipe", "Search")
	}
	target := recipe.Target()
	if !train.HasColumn(target) {
		return nil, nil, nil, errors.NewUnknownColumnError("search", target, train.Names())
	}
	points, err := grid.Points()
	if err != nil {
		return nil, nil, nil, err
	}
	if folds == nil {
		return nil, nil, nil, errors.NewValidationError("folds", "fold set is required", nil)
	}
	if err := validateFolds(train.NumRows(), folds.K); err != nil {
		return nil, nil, nil, err
	}
	if folds.NRows != train.NumRows() || len(folds.Folds) != folds.K {
		return nil, nil, nil, errors.NewValidationError("folds", "fold set was built for a different training set", folds.NRows)
	}
	features := recipe.Features()
	if len(features) == 0 {
		return nil, nil, nil, errors.NewValidationError("features", "no predictors left after preprocessing", 0)
	}

	parts := make([]partition, folds.K)
	for f, fold := range folds.Folds {
		var p partition
		p.X, p.y, err = design(train, fold.Analysis, recipe, features)
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "fold %d analysis", f)
		}
		p.XAssess, p.yAssess, err = design(train, fold.Assessment, recipe, features)
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "fold %d assessment", f)
		}
		parts[f] = p
	}
	return points, parts, features, nil
}

// design subsets rows, applies the recipe and extracts X and y.
func design(ds *dataset.Dataset, rows []int, recipe *preprocessing.Recipe, features []string) (*mat.Dense, *mat.VecDense, error) {
	sub, err := ds.Subset(rows)
	if err != nil {
		return nil, nil, err
	}
	baked, err := recipe.Apply(sub)
	if err != nil {
		return nil, nil, err
	}
	if !baked.HasColumn(recipe.Target()) {
		return nil, nil, errors.NewUnknownColumnError("search", recipe.Target(), baked.Names())
	}
	X, err := baked.Matrix(features)
	if err != nil {
		return nil, nil, err
	}
	y, err := baked.Target(recipe.Target())
	if err != nil {
		return nil, nil, err
	}
	return X, y, nil
}

// fitUnit fits one model and scores it on the assessment rows. Panics are
// turned into errors.
func fitUnit(factory model.RegressorFactory, pt Point, p partition) unit {
	var u unit
	start := time.Now()
	u.err = errors.SafeExecute("tune.fit", func() error {
		m := factory(pt.Penalty, pt.Mixture)
		if err := m.Fit(p.X, p.y); err != nil {
			return err
		}
		if it, ok := m.(interface{ NIter() int }); ok {
			u.nIter = it.NIter()
		}
		pred, err := m.Predict(p.XAssess)
		if err != nil {
			return err
		}
		u.rmse, err = metrics.RMSE(p.yAssess, pred)
		if err != nil {
			return err
		}
		if err := errors.CheckScalar("rmse", u.rmse, u.nIter); err != nil {
			return err
		}
		rsq, err := metrics.R2Score(p.yAssess, pred)
		switch {
		case err == nil:
			u.rsq, u.rsqOK = rsq, true
		case errors.As(err, new(*errors.UndefinedMetricWarning)):
			// 評価データの分散が0なら R² は欠測
		default:
			return err
		}
		return nil
	})
	u.elapsed = time.Since(start)
	return u
}

// reduce aggregates the slots in grid order.
func reduce(points []Point, slots [][]unit, logger log.Logger) *Result {
	res := &Result{Points: points}
	for pi, pt := range points {
		var rmse, rsq []float64
		excluded := 0
		for f, u := range slots[pi] {
			if u.err != nil {
				excluded++
				code := log.ErrorConvergence
				if !errors.IsNonConvergence(u.err) {
					code = log.ErrorFitFailed
				}
				logger.Warn("fold evaluation excluded",
					log.PenaltyKey, pt.Penalty,
					log.MixtureKey, pt.Mixture,
					log.FoldKey, f,
					log.ErrorCodeKey, code,
					"error", u.err.Error(),
				)
				continue
			}
			rmse = append(rmse, u.rmse)
			if u.rsqOK {
				rsq = append(rsq, u.rsq)
			}
		}
		res.Excluded += excluded

		if len(rmse) == 0 {
			res.Omitted = append(res.Omitted, pt)
			logger.Warn("grid point omitted: every fold failed",
				log.PenaltyKey, pt.Penalty,
				log.MixtureKey, pt.Mixture,
				log.ErrorCodeKey, log.ErrorPointOmitted,
			)
			continue
		}

		mean, se := metrics.MeanStdErr(rmse)
		res.Records = append(res.Records, MetricRecord{
			Penalty: pt.Penalty, Mixture: pt.Mixture, Metric: RMSE,
			Mean: mean, StdErr: se, N: len(rmse), Excluded: excluded,
		})

		if len(rsq) == 0 {
			logger.Warn("rsq record omitted: undefined on every fold",
				log.PenaltyKey, pt.Penalty,
				log.MixtureKey, pt.Mixture,
				log.ErrorCodeKey, log.ErrorUndefinedMetric,
			)
			continue
		}
		mean, se = metrics.MeanStdErr(rsq)
		res.Records = append(res.Records, MetricRecord{
			Penalty: pt.Penalty, Mixture: pt.Mixture, Metric: RSQ,
			Mean: mean, StdErr: se, N: len(rsq), Excluded: excluded,
		})
	}
	return res
}

// Best selects the best point for each metric.
func (r *Result) Best() (*BestConfig, error) {
	byRMSE, err := SelectBest(r.Records, RMSE, Minimize)
	if err != nil {
		return nil, err
	}
	best := &BestConfig{ByRMSE: byRMSE}
	byRSQ, err := SelectBest(r.Records, RSQ, Maximize)
	if err == nil {
		best.ByRSQ = &byRSQ
	}
	return best, nil
}

// ForMetric returns the records of one metric in grid order.
func (r *Result) ForMetric(m Metric) []MetricRecord {
	var out []MetricRecord
	for _, rec := range r.Records {
		if rec.Metric == m {
			out = append(out, rec)
		}
	}
	return out
}

// Lookup returns the record of metric m at point p.
func (r *Result) Lookup(p Point, m Metric) (MetricRecord, bool) {
	for _, rec := range r.Records {
		if rec.Metric == m && rec.Penalty == p.Penalty && rec.Mixture == p.Mixture {
			return rec, true
		}
	}
	return MetricRecord{}, false
}

func (r MetricRecord) String() string {
	return fmt.Sprintf("penalty=%g mixture=%g %s=%.6g (se %.3g, n=%d)", r.Penalty, r.Mixture, r.Metric, r.Mean, r.StdErr, r.N)
}

// isBetter reports whether a beats b under direction, NaN never wins.
func isBetter(a, b float64, d Direction) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	if d == Maximize {
		return a > b
	}
	return a < b
}

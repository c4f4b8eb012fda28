// Package workflow drives one tuning run end to end: load, split, prepare,
// search, select and finalize.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/penreg/config"
	"github.com/YuminosukeSato/penreg/core/model"
	"github.com/YuminosukeSato/penreg/dataset"
	"github.com/YuminosukeSato/penreg/linear"
	"github.com/YuminosukeSato/penreg/pkg/errors"
	"github.com/YuminosukeSato/penreg/pkg/log"
	"github.com/YuminosukeSato/penreg/preprocessing"
	"github.com/YuminosukeSato/penreg/tune"
)

// State is the stage a Workflow has reached. Stages only move forward.
type State int

const (
	StateNew State = iota
	StateSplit
	StatePrepared
	StateSearching
	StateSelected
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSplit:
		return "SPLIT"
	case StatePrepared:
		return "PREPARED"
	case StateSearching:
		return "SEARCHING"
	case StateSelected:
		return "SELECTED"
	case StateFinalized:
		return "FINALIZED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Timings records the wall time of each stage.
type Timings struct {
	Load     time.Duration `json:"load"`
	Split    time.Duration `json:"split"`
	Prepare  time.Duration `json:"prepare"`
	Search   time.Duration `json:"search"`
	Finalize time.Duration `json:"finalize"`
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the logger. Defaults to log.GetLogger().
func WithLogger(l log.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

// WithObserver receives every cross-validation fit.
func WithObserver(o tune.Observer) Option {
	return func(w *Workflow) { w.observer = o }
}

// WithFactory replaces the ElasticNet built from the solver settings.
func WithFactory(f model.RegressorFactory) Option {
	return func(w *Workflow) { w.factory = f }
}

// Workflow holds the configuration and the output of every stage.
type Workflow struct {
	cfg      *config.Config
	logger   log.Logger
	observer tune.Observer
	factory  model.RegressorFactory
	runID    string
	started  time.Time

	state   State
	source  string
	data    *dataset.Dataset
	split   *dataset.Split
	recipe  *preprocessing.Recipe
	folds   *tune.FoldSet
	result  *tune.Result
	best    *tune.BestConfig
	metric  tune.Metric
	chosen  tune.MetricRecord
	final   *FinalModel
	eval    Evaluation
	timings Timings
}

// New validates cfg and returns a workflow in StateNew. data.path may be
// empty when the dataset is supplied with UseDataset.
func New(cfg *config.Config, opts ...Option) (*Workflow, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("config", "configuration is required", nil)
	}
	check := *cfg
	if check.Data.Path == "" {
		check.Data.Path = "-"
	}
	if err := check.Validate(); err != nil {
		return nil, err
	}

	w := &Workflow{cfg: cfg, runID: uuid.NewString(), started: time.Now()}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = log.GetLogger()
	}
	if w.factory == nil {
		w.factory = linear.Factory(cfg.SolverOptions()...)
	}
	w.metric = tune.Metric(cfg.Tune.SelectBy)
	w.logger = w.logger.With(log.ComponentKey, "workflow", log.RunIDKey, w.runID)
	return w, nil
}

func (w *Workflow) RunID() string { return w.runID }

func (w *Workflow) State() State { return w.state }

func (w *Workflow) Config() *config.Config { return w.cfg }

func (w *Workflow) Dataset() *dataset.Dataset { return w.data }

func (w *Workflow) Split() *dataset.Split { return w.split }

func (w *Workflow) Recipe() *preprocessing.Recipe { return w.recipe }

func (w *Workflow) Folds() *tune.FoldSet { return w.folds }

func (w *Workflow) Result() *tune.Result { return w.result }

func (w *Workflow) Best() *tune.BestConfig { return w.best }

func (w *Workflow) FinalModel() *FinalModel { return w.final }

func (w *Workflow) require(op string, want State) error {
	if w.state != want {
		return errors.Wrapf(errors.ErrInvalidState, "%s called in state %s, want %s", op, w.state, want)
	}
	return nil
}

// Load reads data.path with the configured loader options.
func (w *Workflow) Load() error {
	if err := w.require("Load", StateNew); err != nil {
		return err
	}
	if w.data != nil {
		return errors.Wrap(errors.ErrInvalidState, "Load called after a dataset was set")
	}
	if w.cfg.Data.Path == "" {
		return errors.NewValidationError("data.path", "an input file is required", "")
	}
	start := time.Now()
	ds, err := dataset.LoadCSV(w.cfg.Data.Path, w.cfg.LoadOptions())
	if err != nil {
		return err
	}
	w.timings.Load = time.Since(start)
	w.use(ds, w.cfg.Data.Path)
	return nil
}

// UseDataset installs an in-memory dataset instead of loading data.path.
func (w *Workflow) UseDataset(ds *dataset.Dataset, source string) error {
	if err := w.require("UseDataset", StateNew); err != nil {
		return err
	}
	if ds == nil {
		return errors.NewValidationError("dataset", "dataset is required", nil)
	}
	w.use(ds, source)
	return nil
}

func (w *Workflow) use(ds *dataset.Dataset, source string) {
	w.data = ds
	w.source = source
	w.logger.Info("dataset loaded",
		log.SourceKey, source,
		log.SamplesKey, ds.NumRows(),
		log.FeaturesKey, ds.NumColumns(),
		log.FingerprintKey, fmt.Sprintf("%016x", ds.Fingerprint()),
	)
}

// SplitData partitions the dataset into train and test.
func (w *Workflow) SplitData() error {
	if err := w.require("Split", StateNew); err != nil {
		return err
	}
	if w.data == nil {
		return errors.Wrap(errors.ErrInvalidState, "Split called before a dataset was loaded")
	}
	start := time.Now()
	sp, err := dataset.StratifiedSplit(w.data, w.cfg.Data.Target, w.cfg.SplitOptions())
	if err != nil {
		return err
	}
	w.split = sp
	w.timings.Split = time.Since(start)
	w.state = StateSplit
	w.logger.Info("dataset split",
		log.OperationKey, log.OperationSplit,
		log.TrainFractionKey, w.cfg.Split.TrainFraction,
		log.RandomSeedKey, w.cfg.Split.Seed,
		"train_rows", sp.Train.NumRows(),
		"test_rows", sp.Test.NumRows(),
		"strata", sp.Strata,
	)
	return nil
}

// Prepare fits the recipe on the train set and builds the folds.
func (w *Workflow) Prepare() error {
	if err := w.require("Prepare", StateSplit); err != nil {
		return err
	}
	start := time.Now()
	train := w.split.Train
	recipe, err := preprocessing.NewRecipe(w.cfg.Data.Target,
		preprocessing.WithRemove(w.cfg.Recipe.Exclude...),
		preprocessing.WithDummy(w.cfg.Recipe.Dummy),
		preprocessing.WithNormalize(w.cfg.Recipe.Normalize),
	).Fit(train)
	if err != nil {
		return err
	}

	var folds *tune.FoldSet
	if w.cfg.Tune.Stratify {
		col, err := train.Column(w.cfg.Data.Target)
		if err != nil {
			return err
		}
		folds, err = tune.NewStratifiedFoldSet(col.Numbers, w.cfg.Tune.Folds, w.cfg.Split.Seed, w.cfg.StrataOptions())
		if err != nil {
			return err
		}
	} else {
		folds, err = tune.NewFoldSet(train.NumRows(), w.cfg.Tune.Folds, w.cfg.Split.Seed)
		if err != nil {
			return err
		}
	}

	w.recipe = recipe
	w.folds = folds
	w.timings.Prepare = time.Since(start)
	w.state = StatePrepared
	w.logger.Info("recipe prepared",
		log.OperationKey, log.OperationTransform,
		log.FeaturesKey, len(recipe.Features()),
		log.FoldsKey, folds.K,
		"removed", recipe.Removed(),
	)
	return nil
}

// Search runs the grid search and selects the configuration to finalize.
// On failure the workflow returns to StatePrepared.
func (w *Workflow) Search(ctx context.Context) error {
	if err := w.require("Search", StatePrepared); err != nil {
		return err
	}
	w.state = StateSearching
	res, best, err := w.search(ctx)
	if err != nil {
		w.state = StatePrepared
		return err
	}
	w.result = res
	w.best = best
	w.timings.Search = res.Elapsed

	w.chosen = best.ByRMSE
	if w.metric == tune.RSQ {
		if best.ByRSQ != nil {
			w.chosen = *best.ByRSQ
		} else {
			w.logger.Warn("no rsq records, selecting by rmse",
				log.ErrorCodeKey, log.ErrorUndefinedMetric,
			)
			w.metric = tune.RMSE
		}
	}
	if best.Disagree() {
		w.logger.Info("rmse and rsq select different points",
			"rmse_best", best.ByRMSE.Point(),
			"rsq_best", best.ByRSQ.Point(),
		)
	}
	w.state = StateSelected
	w.logger.Info("configuration selected",
		log.PenaltyKey, w.chosen.Penalty,
		log.MixtureKey, w.chosen.Mixture,
		"metric", string(w.metric),
		"mean", w.chosen.Mean,
		"std_err", w.chosen.StdErr,
		log.ExcludedKey, res.Excluded,
	)
	return nil
}

func (w *Workflow) search(ctx context.Context) (*tune.Result, *tune.BestConfig, error) {
	res, err := tune.Search(ctx, w.split.Train, w.recipe, w.cfg.Grid(), w.folds, tune.Options{
		Workers:  w.cfg.Tune.Workers,
		Factory:  w.factory,
		Logger:   w.logger,
		Observer: w.observer,
	})
	if err != nil {
		return nil, nil, err
	}
	best, err := res.Best()
	if err != nil {
		return nil, nil, errors.Wrap(err, "every grid point was omitted")
	}
	return res, best, nil
}

// Selected returns the metric and record used for finalization.
func (w *Workflow) Selected() (tune.Metric, tune.MetricRecord) { return w.metric, w.chosen }

// Finalize refits the selected point on the full train set and scores the
// test set once.
func (w *Workflow) Finalize() error {
	if err := w.require("Finalize", StateSelected); err != nil {
		return err
	}
	start := time.Now()
	fm, err := Finalize(w.chosen.Point(), w.split.Train, w.split.Test, w.recipe, w.factory)
	if err != nil {
		return err
	}
	ev, err := fm.Evaluate()
	if err != nil {
		return err
	}
	w.final = fm
	w.eval = ev
	w.timings.Finalize = time.Since(start)
	w.state = StateFinalized
	w.logger.Info("final model evaluated",
		log.OperationKey, log.OperationFinalize,
		log.PenaltyKey, fm.Point.Penalty,
		log.MixtureKey, fm.Point.Mixture,
		log.RMSEKey, ev.RMSE,
		log.R2ScoreKey, ev.RSQ,
		log.SamplesKey, ev.N,
	)
	return nil
}

// Run executes every remaining stage and returns the report. A workflow that
// has no dataset loads data.path first.
func (w *Workflow) Run(ctx context.Context) (*Report, error) {
	if w.state == StateNew && w.data == nil {
		if err := w.Load(); err != nil {
			return nil, err
		}
	}
	steps := []struct {
		from State
		run  func() error
	}{
		{StateNew, w.SplitData},
		{StateSplit, w.Prepare},
		{StatePrepared, func() error { return w.Search(ctx) }},
		{StateSelected, w.Finalize},
	}
	for _, s := range steps {
		if w.state != s.from {
			continue
		}
		if err := s.run(); err != nil {
			return nil, err
		}
	}
	return w.Report()
}

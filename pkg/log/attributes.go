// Package log defines standard attribute keys for penalized regression workflows.
//
// Using these keys keeps split, preprocessing, tuning and finalization logs
// consistent so that a tuning run can be filtered by stage, grid point or fold.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples", "tune.penalty").

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model or transformer.
	// Examples: "ElasticNet", "Recipe", "StandardScaler"
	ModelNameKey = "model.name"

	// RunIDKey identifies one workflow run.
	RunIDKey = "run.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "split", "search", "finalize"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "dataset", "preprocessing", "tune", "workflow"
	ComponentKey = "ml.component"

	// PhaseKey indicates the workflow state.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey indicates the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of predictor columns.
	FeaturesKey = "data.features"

	// TargetKey names the regression target column.
	TargetKey = "data.target"

	// SourceKey names the input file.
	SourceKey = "data.source"

	// FingerprintKey is the xxhash fingerprint of a dataset.
	FingerprintKey = "data.fingerprint"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// RMSEKey records root mean squared error.
	RMSEKey = "metrics.rmse"

	// R2ScoreKey records R² coefficient of determination.
	R2ScoreKey = "metrics.r2_score"

	// IterationKey records the number of solver sweeps.
	IterationKey = "training.iteration"
)

// Tuning Context
const (
	// PenaltyKey records λ for a grid point.
	PenaltyKey = "tune.penalty"

	// MixtureKey records α for a grid point.
	MixtureKey = "tune.mixture"

	// FoldKey records the zero-based cross-validation fold.
	FoldKey = "tune.fold"

	// GridSizeKey records the number of grid points.
	GridSizeKey = "tune.grid_size"

	// FoldsKey records the number of folds.
	FoldsKey = "tune.folds"

	// RecordsKey records the number of emitted metric records.
	RecordsKey = "tune.records"

	// ExcludedKey records the number of failed fold evaluations.
	ExcludedKey = "tune.excluded"

	// WorkersKey records the worker pool size.
	WorkersKey = "tune.workers"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Configuration
const (
	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// TrainFractionKey records the train proportion of the split.
	TrainFractionKey = "config.train_fraction"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationSplit     = "split"
	OperationSearch    = "search"
	OperationFinalize  = "finalize"

	ErrorConvergence     = "CONVERGENCE_FAILURE"
	ErrorUndefinedMetric = "UNDEFINED_METRIC"
	ErrorPointOmitted    = "GRID_POINT_OMITTED"
	ErrorFitFailed       = "FIT_FAILED"
)

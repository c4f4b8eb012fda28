// Package penreg tunes penalized linear regression (the elastic net) on
// tabular data and evaluates the chosen model once on a held-out test set.
//
// A run moves through a fixed sequence of stages:
//
//   - Load: read a CSV file (optionally gzip, zstd, lz4 or xz compressed)
//     into a typed dataset.
//   - Split: a seeded split into training and test sets, stratified on
//     quantile bins of the target.
//   - Prepare: fit a preprocessing recipe (column removal, dummy encoding,
//     optional normalization) on the training set only.
//   - Search: evaluate every (penalty, mixture) point of a grid with k-fold
//     cross-validation, reporting the mean and standard error of RMSE and R².
//   - Select: pick the point with the lowest mean RMSE; ties go to the
//     smaller mixture, then the smaller penalty.
//   - Finalize: refit on the whole training set and score the test set.
//
// # Quick Start
//
//	cfg := config.Default()
//	cfg.Data.Path = "houses.csv.gz"
//	cfg.Data.Target = "price"
//	cfg.Recipe.Exclude = []string{"id"}
//
//	wf, err := workflow.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rep, err := wf.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("test RMSE:", rep.Test.RMSE)
//
// The same run is available from the command line:
//
//	penreg tune --data houses.csv.gz --target price --exclude id
//
// # Packages
//
//   - dataset: typed columns, CSV loading, quantile strata and the split
//   - preprocessing: the recipe and the standard scaler
//   - linear: elastic net by coordinate descent, ordinary least squares
//   - tune: grid expansion, fold assignment, cross-validated search, selection
//   - workflow: the staged pipeline, final fit and report
//   - report: table, CSV and JSON output, tuning plots, Prometheus metrics
//   - store: persistence of runs to SQLite or PostgreSQL
//   - config: layered configuration (file, environment, flags)
//   - metrics: RMSE, R² and related scores
//   - core/model, core/parallel: shared interfaces and the worker pool
//   - pkg/errors, pkg/log: error kinds and structured logging
package penreg

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/penreg/core/model"
	"github.com/YuminosukeSato/penreg/pkg/errors"
	"github.com/YuminosukeSato/penreg/pkg/log"
	"github.com/YuminosukeSato/penreg/report"
	"github.com/YuminosukeSato/penreg/store"
	"github.com/YuminosukeSato/penreg/tune"
	"github.com/YuminosukeSato/penreg/workflow"
)

func newTuneCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Run the split, grid search and final evaluation",
		Example: `  penreg tune --data houses.csv.gz --target price --exclude id
  penreg tune --config penreg.yaml --format json --out-dir results`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			return a.runTune(cmd)
		},
	}
	fs := cmd.Flags()
	addDataFlags(fs)
	fs.StringSlice("exclude", nil, "columns removed before fitting")
	fs.Bool("dummy", true, "dummy-encode categorical predictors")
	fs.Bool("normalize", false, "center and scale numeric predictors")
	fs.Int("folds", 0, "number of cross-validation folds (default 10)")
	fs.Bool("stratify", false, "stratify the folds on the target")
	fs.Int("workers", 0, "concurrent fits (default one per CPU)")
	fs.String("select-by", "", "metric used to pick the final configuration: rmse or rsq (default rmse)")
	fs.Float64("penalty-min", 0, "smallest penalty")
	fs.Float64("penalty-max", 0, "largest penalty (default 10)")
	fs.Float64("penalty-step", 0, "penalty step (default 1)")
	fs.Float64("mixture-min", 0, "smallest mixture")
	fs.Float64("mixture-max", 0, "largest mixture (default 1)")
	fs.Float64("mixture-step", 0, "mixture step (default 0.1)")
	fs.Int("max-iter", 0, "coordinate descent sweep limit (default 10000)")
	fs.Float64("tol", 0, "coordinate descent tolerance (default 1e-7)")
	fs.String("out-dir", "", "directory for report.json, weights.json and the tuning plot")
	fs.String("format", "", "stdout format: table, csv or json (default table)")
	fs.Bool("plot", false, "write tuning.png to the output directory")
	fs.String("metrics-file", "", "write Prometheus metrics to this textfile")
	fs.Int("top", 0, "list only the best n points per metric (default 5, 0 lists all)")
	fs.String("store", "", "save the run to a database: sqlite3://path or postgres://...")
	return cmd
}

func (a *app) runTune(cmd *cobra.Command) error {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	metrics := report.NewMetrics()
	wf, err := workflow.New(cfg, workflow.WithLogger(a.logger), workflow.WithObserver(metrics))
	if err != nil {
		return err
	}
	rep, err := wf.Run(cmd.Context())
	if err != nil {
		return err
	}
	metrics.ObserveReport(rep)

	if err := report.WriteReport(cmd.OutOrStdout(), rep, format, cfg.Output.Top); err != nil {
		return err
	}

	if dir := cfg.Output.Dir; dir != "" {
		if err := a.writeOutputs(dir, rep); err != nil {
			return err
		}
	}
	if path := cfg.Output.MetricsFile; path != "" {
		if err := metrics.WriteToTextfile(path); err != nil {
			return err
		}
	}
	if dsn := cfg.Store.DSN; dsn != "" {
		st, err := store.Open(cmd.Context(), dsn)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveRun(cmd.Context(), rep); err != nil {
			return err
		}
		a.logger.Info("run saved", log.RunIDKey, rep.RunID)
	}
	return nil
}

func (a *app) writeOutputs(dir string, rep *workflow.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	f, err := os.Create(filepath.Join(dir, "report.json"))
	if err != nil {
		return errors.Wrap(err, "failed to create report.json")
	}
	if err := report.WriteReport(f, rep, report.FormatJSON, 0); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := model.SaveWeights(rep.Weights, filepath.Join(dir, "weights.json")); err != nil {
		return err
	}
	if a.cfg.Output.Plot {
		p := rep.Selected.Point()
		if err := report.PlotTuning(filepath.Join(dir, "tuning.png"), rep.Records, tune.RMSE, &p); err != nil {
			return err
		}
	}
	return nil
}

// Command penreg tunes an elastic net on a CSV file: stratified split,
// preprocessing, grid search under k-fold cross-validation and a single
// evaluation of the selected model on the held-out test set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/penreg/config"
	"github.com/YuminosukeSato/penreg/pkg/errors"
	"github.com/YuminosukeSato/penreg/pkg/log"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

// app is the state shared by the subcommands of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	logger     log.Logger
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"data":           "data.path",
	"target":         "data.target",
	"delimiter":      "data.delimiter",
	"comment":        "data.comment",
	"categorical":    "data.categorical",
	"train-fraction": "split.train_fraction",
	"seed":           "split.seed",
	"breaks":         "split.breaks",
	"exclude":        "recipe.exclude",
	"dummy":          "recipe.dummy",
	"normalize":      "recipe.normalize",
	"folds":          "tune.folds",
	"stratify":       "tune.stratify",
	"workers":        "tune.workers",
	"select-by":      "tune.select_by",
	"penalty-min":    "tune.penalty.min",
	"penalty-max":    "tune.penalty.max",
	"penalty-step":   "tune.penalty.step",
	"mixture-min":    "tune.mixture.min",
	"mixture-max":    "tune.mixture.max",
	"mixture-step":   "tune.mixture.step",
	"max-iter":       "solver.max_iter",
	"tol":            "solver.tol",
	"out-dir":        "output.dir",
	"format":         "output.format",
	"plot":           "output.plot",
	"metrics-file":   "output.metrics_file",
	"top":            "output.top",
	"store":          "store.dsn",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "penreg",
		Short:         "Penalized linear regression tuning",
		Long:          `Tune an elastic net (penalty x mixture grid) with k-fold cross-validation and evaluate the best configuration once on a held-out test set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default info)")
	root.PersistentFlags().String("log-format", "", "log format: console, json or cloud (default console)")

	root.AddCommand(newTuneCmd(a), newSplitCmd(a), newVersionCmd())
	return root
}

// load binds the command's flags, reads the configuration and installs the
// logger.
func (a *app) load(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = a.v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return errors.Wrap(bindErr, "failed to bind flags")
	}

	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	level, ok := log.ParseLevel(cfg.Log.Level)
	if !ok {
		return errors.NewValidationError("log.level", "must be one of debug, info, warn, error", cfg.Log.Level)
	}
	a.cfg = cfg
	if cfg.Log.Format == "cloud" {
		a.logger = log.NewCloudLogger(cmd.ErrOrStderr(), cfg.Log.Level)
	} else {
		a.logger = log.NewZerologLogger(cmd.ErrOrStderr(), level, cfg.Log.Format)
	}
	log.SetLogger(a.logger)
	return nil
}

func addDataFlags(fs *pflag.FlagSet) {
	fs.String("data", "", "input CSV file, optionally .gz, .zst, .lz4 or .xz compressed")
	fs.String("target", "", "name of the numeric target column")
	fs.String("delimiter", "", "field delimiter (default ,)")
	fs.String("comment", "", "comment character")
	fs.StringSlice("categorical", nil, "columns to treat as categorical")
	fs.Float64("train-fraction", 0, "share of rows in the training set (default 0.7)")
	fs.Uint64("seed", 0, "random seed for the split and folds (default 42)")
	fs.Int("breaks", 0, "number of target quantile strata (default 4)")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "penreg %s\n", version)
		},
	}
}

// exitCode distinguishes configuration and input errors from other failures.
func exitCode(err error) int {
	switch {
	case errors.IsInvalidConfiguration(err), errors.IsUnknownColumn(err):
		return 2
	case errors.IsDataIntegrity(err):
		return 3
	default:
		return 1
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "penreg: %v\n", err)
		os.Exit(exitCode(err))
	}
}

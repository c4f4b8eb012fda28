// Package config loads penreg settings from defaults, an optional config
// file, PENREG_* environment variables and command-line flags.
package config

import (
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/penreg/dataset"
	"github.com/YuminosukeSato/penreg/linear"
	"github.com/YuminosukeSato/penreg/pkg/errors"
	"github.com/YuminosukeSato/penreg/pkg/log"
	"github.com/YuminosukeSato/penreg/tune"
)

// EnvPrefix is prepended to environment variable names, e.g. PENREG_SPLIT_SEED.
const EnvPrefix = "PENREG"

type Config struct {
	Data   DataConfig   `mapstructure:"data"`
	Split  SplitConfig  `mapstructure:"split"`
	Recipe RecipeConfig `mapstructure:"recipe"`
	Tune   TuneConfig   `mapstructure:"tune"`
	Solver SolverConfig `mapstructure:"solver"`
	Output OutputConfig `mapstructure:"output"`
	Store  StoreConfig  `mapstructure:"store"`
	Log    LogConfig    `mapstructure:"log"`
}

type DataConfig struct {
	Path        string   `mapstructure:"path"`
	Target      string   `mapstructure:"target"`
	Delimiter   string   `mapstructure:"delimiter"`
	Comment     string   `mapstructure:"comment"`
	Categorical []string `mapstructure:"categorical"`
}

type SplitConfig struct {
	TrainFraction float64 `mapstructure:"train_fraction"`
	Seed          uint64  `mapstructure:"seed"`
	Breaks        int     `mapstructure:"breaks"`
	Depth         int     `mapstructure:"depth"`
	Pool          float64 `mapstructure:"pool"`
}

type RecipeConfig struct {
	Exclude   []string `mapstructure:"exclude"`
	Dummy     bool     `mapstructure:"dummy"`
	Normalize bool     `mapstructure:"normalize"`
}

type TuneConfig struct {
	Folds    int        `mapstructure:"folds"`
	Stratify bool       `mapstructure:"stratify"`
	Workers  int        `mapstructure:"workers"`
	SelectBy string     `mapstructure:"select_by"`
	Penalty  tune.Range `mapstructure:"penalty"`
	Mixture  tune.Range `mapstructure:"mixture"`
}

type SolverConfig struct {
	MaxIter int     `mapstructure:"max_iter"`
	Tol     float64 `mapstructure:"tol"`
}

type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	Format      string `mapstructure:"format"`
	Plot        bool   `mapstructure:"plot"`
	MetricsFile string `mapstructure:"metrics_file"`
	Top         int    `mapstructure:"top"`
}

type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every key with its default so that environment
// variables are honoured by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data.path", "")
	v.SetDefault("data.target", "")
	v.SetDefault("data.delimiter", ",")
	v.SetDefault("data.comment", "")
	v.SetDefault("data.categorical", []string{})

	v.SetDefault("split.train_fraction", 0.7)
	v.SetDefault("split.seed", 42)
	v.SetDefault("split.breaks", 4)
	v.SetDefault("split.depth", 20)
	v.SetDefault("split.pool", 0.1)

	v.SetDefault("recipe.exclude", []string{})
	v.SetDefault("recipe.dummy", true)
	v.SetDefault("recipe.normalize", false)

	v.SetDefault("tune.folds", 10)
	v.SetDefault("tune.stratify", false)
	v.SetDefault("tune.workers", runtime.NumCPU())
	v.SetDefault("tune.select_by", string(tune.RMSE))
	v.SetDefault("tune.penalty.min", 0.0)
	v.SetDefault("tune.penalty.max", 10.0)
	v.SetDefault("tune.penalty.step", 1.0)
	v.SetDefault("tune.mixture.min", 0.0)
	v.SetDefault("tune.mixture.max", 1.0)
	v.SetDefault("tune.mixture.step", 0.1)

	v.SetDefault("solver.max_iter", linear.DefaultMaxIter)
	v.SetDefault("solver.tol", linear.DefaultTol)

	v.SetDefault("output.dir", "")
	v.SetDefault("output.format", "table")
	v.SetDefault("output.plot", false)
	v.SetDefault("output.metrics_file", "")
	v.SetDefault("output.top", 5)

	v.SetDefault("store.dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// New returns a viper instance with defaults and PENREG_* environment
// binding configured.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path into v and decodes the result.
// Flags bound to v before the call take precedence over the file.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode into config struct")
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied.
func Default() *Config {
	cfg, _ := Load(New(), "")
	return cfg
}

// Validate checks every field and returns an InvalidConfiguration error for
// the first bad one.
func (c *Config) Validate() error {
	if c.Data.Path == "" {
		return errors.NewValidationError("data.path", "an input file is required", c.Data.Path)
	}
	if c.Data.Target == "" {
		return errors.NewValidationError("data.target", "a target column is required", c.Data.Target)
	}
	if len([]rune(c.Data.Delimiter)) != 1 {
		return errors.NewValidationError("data.delimiter", "must be a single character", c.Data.Delimiter)
	}
	if len([]rune(c.Data.Comment)) > 1 {
		return errors.NewValidationError("data.comment", "must be empty or a single character", c.Data.Comment)
	}
	if c.Data.Comment != "" && c.Data.Comment == c.Data.Delimiter {
		return errors.NewValidationError("data.comment", "must differ from the delimiter", c.Data.Comment)
	}
	for _, ex := range c.Recipe.Exclude {
		if ex == c.Data.Target {
			return errors.NewValidationError("recipe.exclude", "the target column cannot be excluded", ex)
		}
	}
	if c.Split.TrainFraction <= 0 || c.Split.TrainFraction >= 1 {
		return errors.NewValidationError("split.train_fraction", "must be within (0, 1)", c.Split.TrainFraction)
	}
	if c.Split.Breaks < 1 {
		return errors.NewValidationError("split.breaks", "must be at least 1", c.Split.Breaks)
	}
	if c.Split.Depth < 1 {
		return errors.NewValidationError("split.depth", "must be at least 1", c.Split.Depth)
	}
	if c.Split.Pool < 0 || c.Split.Pool >= 1 {
		return errors.NewValidationError("split.pool", "must be within [0, 1)", c.Split.Pool)
	}
	if c.Tune.Folds < 2 {
		return errors.NewValidationError("tune.folds", "at least two folds are required", c.Tune.Folds)
	}
	if c.Tune.Workers < 0 {
		return errors.NewValidationError("tune.workers", "must not be negative", c.Tune.Workers)
	}
	switch tune.Metric(c.Tune.SelectBy) {
	case tune.RMSE, tune.RSQ:
	default:
		return errors.NewValidationError("tune.select_by", "must be rmse or rsq", c.Tune.SelectBy)
	}
	if _, err := c.Grid().Points(); err != nil {
		return err
	}
	if c.Solver.MaxIter < 1 {
		return errors.NewValidationError("solver.max_iter", "must be at least 1", c.Solver.MaxIter)
	}
	if !(c.Solver.Tol > 0) {
		return errors.NewValidationError("solver.tol", "must be positive", c.Solver.Tol)
	}
	switch c.Output.Format {
	case "table", "csv", "json":
	default:
		return errors.NewValidationError("output.format", "must be one of table, csv, json", c.Output.Format)
	}
	if c.Output.Top < 0 {
		return errors.NewValidationError("output.top", "must not be negative", c.Output.Top)
	}
	if _, ok := log.ParseLevel(c.Log.Level); !ok {
		return errors.NewValidationError("log.level", "must be one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json", "cloud":
	default:
		return errors.NewValidationError("log.format", "must be console, json or cloud", c.Log.Format)
	}
	return nil
}

// Grid returns the hyperparameter grid.
func (c *Config) Grid() tune.Grid {
	return tune.Grid{Penalty: c.Tune.Penalty, Mixture: c.Tune.Mixture}
}

// SplitOptions returns the splitter settings.
func (c *Config) SplitOptions() dataset.SplitOptions {
	return dataset.SplitOptions{
		TrainFraction: c.Split.TrainFraction,
		Seed:          c.Split.Seed,
		Strata:        c.StrataOptions(),
	}
}

// StrataOptions returns the target binning settings.
func (c *Config) StrataOptions() dataset.StrataOptions {
	s := dataset.DefaultStrataOptions()
	s.Breaks = c.Split.Breaks
	s.Depth = c.Split.Depth
	s.Pool = c.Split.Pool
	return s
}

// LoadOptions returns the CSV loader settings.
func (c *Config) LoadOptions() dataset.LoadOptions {
	opts := dataset.LoadOptions{Categorical: c.Data.Categorical}
	if r := []rune(c.Data.Delimiter); len(r) == 1 {
		opts.Delimiter = r[0]
	}
	if r := []rune(c.Data.Comment); len(r) == 1 {
		opts.Comment = r[0]
	}
	return opts
}

// SolverOptions returns the ElasticNet options.
func (c *Config) SolverOptions() []linear.Option {
	return []linear.Option{linear.WithMaxIter(c.Solver.MaxIter), linear.WithTol(c.Solver.Tol)}
}

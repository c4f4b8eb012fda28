package preprocessing

import (
	"sort"
	"strings"
	"unicode"

	"github.com/YuminosukeSato/penreg/dataset"
	"github.com/YuminosukeSato/penreg/pkg/errors"
)

// RecipeOption configures a Recipe before it is fitted.
type RecipeOption func(*Recipe)

// WithRemove drops the named columns. Each must exist in the training data.
func WithRemove(columns ...string) RecipeOption {
	return func(r *Recipe) {
		r.remove = append(r.remove, columns...)
	}
}

// WithDummy controls one-hot encoding of categorical predictors. Enabled by default.
func WithDummy(enabled bool) RecipeOption {
	return func(r *Recipe) {
		r.dummy = enabled
	}
}

// WithNormalize centers and scales numeric predictors with statistics from
// the training data. Disabled by default.
func WithNormalize(enabled bool) RecipeOption {
	return func(r *Recipe) {
		r.normalize = enabled
	}
}

// Recipe is a column transformation learned from training data only and then
// applied unchanged to every partition. The steps run in order: remove the
// listed columns, one-hot encode categorical predictors (first level is the
// reference and is dropped), normalize numeric predictors.
//
// An unfitted Recipe only holds configuration. Fit returns a new, fitted
// Recipe and never modifies the receiver, so a fitted Recipe is read-only and
// safe for concurrent Apply calls.
type Recipe struct {
	target    string
	remove    []string
	dummy     bool
	normalize bool

	fitted bool
	input  dataset.Schema
	output dataset.Schema
	// levels は学習データで観測されたカテゴリ水準（ソート済み）
	levels map[string][]string
	// normCols は標準化する数値説明変数
	normCols []string
	scaler   *StandardScaler
}

// NewRecipe creates an unfitted recipe for the given target column.
func NewRecipe(target string, opts ...RecipeOption) *Recipe {
	r := &Recipe{target: target, dummy: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Target returns the target column name.
func (r *Recipe) Target() string { return r.target }

// IsFitted reports whether the recipe has been fitted.
func (r *Recipe) IsFitted() bool { return r.fitted }

// Removed returns the columns dropped by the recipe.
func (r *Recipe) Removed() []string { return append([]string(nil), r.remove...) }

// InputSchema returns the schema seen at fit time.
func (r *Recipe) InputSchema() dataset.Schema { return append(dataset.Schema(nil), r.input...) }

// OutputSchema returns the schema Apply produces.
func (r *Recipe) OutputSchema() dataset.Schema { return append(dataset.Schema(nil), r.output...) }

// Levels returns the training levels of a categorical column.
func (r *Recipe) Levels(column string) []string {
	return append([]string(nil), r.levels[column]...)
}

// Features returns the output predictor names, target excluded.
func (r *Recipe) Features() []string {
	out := make([]string, 0, len(r.output))
	for _, f := range r.output {
		if f.Name != r.target {
			out = append(out, f.Name)
		}
	}
	return out
}

// Fit learns the transformation from train and returns the fitted recipe.
func (r *Recipe) Fit(train *dataset.Dataset) (*Recipe, error) {
	if !train.HasColumn(r.target) {
		return nil, errors.NewUnknownColumnError("recipe", r.target, train.Names())
	}
	for _, c := range r.remove {
		if c == r.target {
			return nil, errors.NewValidationError("remove", "the target column cannot be removed", c)
		}
		if !train.HasColumn(c) {
			return nil, errors.NewUnknownColumnError("step_rm", c, train.Names())
		}
	}
	if train.NumRows() == 0 {
		return nil, errors.NewModelError("Recipe.Fit", "empty data", errors.ErrEmptyData)
	}

	fitted := &Recipe{
		target:    r.target,
		remove:    append([]string(nil), r.remove...),
		dummy:     r.dummy,
		normalize: r.normalize,
		fitted:    true,
		input:     train.Schema(),
		levels:    make(map[string][]string),
	}

	removed := make(map[string]bool, len(r.remove))
	for _, c := range r.remove {
		removed[c] = true
	}

	for _, f := range fitted.input {
		if removed[f.Name] {
			continue
		}
		if f.Name == r.target {
			if f.Kind != dataset.Numeric {
				return nil, errors.NewValidationError("target", "target column must be numeric", f.Name)
			}
			fitted.output = append(fitted.output, f)
			continue
		}
		switch f.Kind {
		case dataset.Numeric:
			fitted.output = append(fitted.output, f)
			if fitted.normalize {
				fitted.normCols = append(fitted.normCols, f.Name)
			}
		case dataset.Categorical:
			if !fitted.dummy {
				fitted.output = append(fitted.output, f)
				continue
			}
			col, _ := train.Column(f.Name)
			lv := uniqueLevels(col.Strings)
			fitted.levels[f.Name] = lv
			for _, level := range lv[1:] {
				fitted.output = append(fitted.output, dataset.Field{Name: dummyName(f.Name, level), Kind: dataset.Numeric})
			}
		}
	}

	if err := checkUnique(fitted.output); err != nil {
		return nil, err
	}

	if len(fitted.normCols) > 0 {
		X, err := train.Matrix(fitted.normCols)
		if err != nil {
			return nil, err
		}
		fitted.scaler = NewStandardScalerDefault()
		if err := fitted.scaler.Fit(X); err != nil {
			return nil, err
		}
	}
	return fitted, nil
}

// Apply transforms ds with the learned steps. Row order and count are
// preserved. Columns that were removed at fit time may be absent, and so may
// the target; every other input column must be present with the same kind.
// Applying to data that already has the output schema returns a copy, except
// when normalization is on and the input and output schemas coincide: such
// data cannot be told apart from raw input, so it is normalized again. The
// column set is then unchanged but the values are not.
func (r *Recipe) Apply(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if !r.fitted {
		return nil, errors.NewNotFittedError("Recipe", "Apply")
	}
	// 出力スキーマを持つデータは変換済みとみなす。ただし入力と出力のスキーマが
	// 同じで標準化がある場合は区別できないので変換する
	if ds.Schema().Equal(r.output) && (r.scaler == nil || !r.input.Equal(r.output)) {
		return ds.Clone(), nil
	}

	removed := make(map[string]bool, len(r.remove))
	for _, c := range r.remove {
		removed[c] = true
	}

	var normalized map[string][]float64
	if r.scaler != nil {
		for _, c := range r.normCols {
			if !ds.HasColumn(c) {
				return nil, errors.NewUnknownColumnError("apply", c, ds.Names())
			}
		}
		X, err := ds.Matrix(r.normCols)
		if err != nil {
			return nil, err
		}
		Z, err := r.scaler.Transform(X)
		if err != nil {
			return nil, err
		}
		normalized = make(map[string][]float64, len(r.normCols))
		for j, c := range r.normCols {
			normalized[c] = make([]float64, ds.NumRows())
			for i := range normalized[c] {
				normalized[c][i] = Z.At(i, j)
			}
		}
	}

	cols := make([]dataset.Column, 0, len(r.output))
	for _, f := range r.input {
		if removed[f.Name] {
			continue
		}
		col, err := ds.Column(f.Name)
		if err != nil {
			if f.Name == r.target {
				continue
			}
			return nil, errors.NewUnknownColumnError("apply", f.Name, ds.Names())
		}
		if col.Kind != f.Kind {
			return nil, errors.NewValidationError(f.Name, "column kind differs from training data", col.Kind.String())
		}

		if f.Kind == dataset.Categorical && r.dummy {
			cols = append(cols, encodeDummies(col, r.levels[f.Name])...)
			continue
		}
		if z, ok := normalized[f.Name]; ok {
			cols = append(cols, dataset.NumericColumn(f.Name, z))
			continue
		}
		if f.Kind == dataset.Numeric {
			cols = append(cols, dataset.NumericColumn(f.Name, append([]float64(nil), col.Numbers...)))
		} else {
			cols = append(cols, dataset.CategoricalColumn(f.Name, append([]string(nil), col.Strings...)))
		}
	}
	if len(cols) == 0 {
		return nil, errors.NewModelError("Recipe.Apply", "no columns left after transformation", errors.ErrEmptyData)
	}
	return dataset.New(cols...)
}

// encodeDummies emits one indicator column per non-reference level. Values
// not seen in training encode as all zeros.
func encodeDummies(col dataset.Column, levels []string) []dataset.Column {
	if len(levels) < 2 {
		return nil
	}
	index := make(map[string]int, len(levels))
	for i, l := range levels {
		index[l] = i
	}
	out := make([]dataset.Column, len(levels)-1)
	for k := range out {
		out[k] = dataset.NumericColumn(dummyName(col.Name, levels[k+1]), make([]float64, len(col.Strings)))
	}
	for i, v := range col.Strings {
		if k, ok := index[v]; ok && k > 0 {
			out[k-1].Numbers[i] = 1
		}
	}
	return out
}

func uniqueLevels(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// dummyName builds "column_level" with characters outside [A-Za-z0-9_.]
// replaced by '.'.
func dummyName(column, level string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' {
			return r
		}
		return '.'
	}, level)
	return column + "_" + clean
}

func checkUnique(s dataset.Schema) error {
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		if seen[f.Name] {
			return errors.NewValidationError("column", "encoded column name collides with an existing column", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

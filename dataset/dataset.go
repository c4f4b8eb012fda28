// Package dataset provides the in-memory tabular dataset used by penreg, the
// CSV loader that produces it, and the stratified train/test splitter.
package dataset

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

// Kind is the value type of a column.
type Kind int

const (
	// Numeric columns hold float64 values.
	Numeric Kind = iota
	// Categorical columns hold string levels.
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Column is a named, typed column. Exactly one of Numbers or Strings is set,
// matching Kind.
type Column struct {
	Name    string
	Kind    Kind
	Numbers []float64
	Strings []string
}

// NumericColumn builds a numeric column.
func NumericColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: Numeric, Numbers: values}
}

// CategoricalColumn builds a categorical column.
func CategoricalColumn(name string, values []string) Column {
	return Column{Name: name, Kind: Categorical, Strings: values}
}

// Len returns the number of values in the column.
func (c Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Strings)
	}
	return len(c.Numbers)
}

func (c Column) subset(rows []int) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Categorical {
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
		return out
	}
	out.Numbers = make([]float64, len(rows))
	for i, r := range rows {
		out.Numbers[i] = c.Numbers[r]
	}
	return out
}

func (c Column) clone() Column {
	return Column{
		Name:    c.Name,
		Kind:    c.Kind,
		Numbers: append([]float64(nil), c.Numbers...),
		Strings: append([]string(nil), c.Strings...),
	}
}

// Field describes one column of a Schema.
type Field struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Schema is the ordered list of column names and kinds.
type Schema []Field

// Equal reports whether both schemas list the same columns in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.Name + ":" + f.Kind.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Dataset is an ordered collection of rows stored column-wise. The column set
// is fixed and names are unique. A Dataset is never mutated after creation;
// every operation returns a new value.
type Dataset struct {
	columns []Column
	index   map[string]int
	nRows   int
}

// New builds a Dataset from columns of equal length.
func New(columns ...Column) (*Dataset, error) {
	ds := &Dataset{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if c.Name == "" {
			return nil, errors.NewValidationError("column", "name must not be empty", i)
		}
		if _, dup := ds.index[c.Name]; dup {
			return nil, errors.NewValidationError("column", "duplicate column name", c.Name)
		}
		if i == 0 {
			ds.nRows = c.Len()
		} else if c.Len() != ds.nRows {
			return nil, errors.NewDimensionError("dataset.New", ds.nRows, c.Len(), 0)
		}
		ds.index[c.Name] = i
		ds.columns[i] = c
	}
	return ds, nil
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int { return d.nRows }

// NumColumns returns the number of columns.
func (d *Dataset) NumColumns() int { return len(d.columns) }

// Columns returns the columns in order. The values are shared and must not be modified.
func (d *Dataset) Columns() []Column {
	return append([]Column(nil), d.columns...)
}

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether a column with the given name exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column returns the named column or an UnknownColumn error.
func (d *Dataset) Column(name string) (Column, error) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, errors.NewUnknownColumnError("column", name, d.Names())
	}
	return d.columns[i], nil
}

// Schema returns the ordered column names and kinds.
func (d *Dataset) Schema() Schema {
	s := make(Schema, len(d.columns))
	for i, c := range d.columns {
		s[i] = Field{Name: c.Name, Kind: c.Kind}
	}
	return s
}

// Subset returns a copy holding the given rows in the given order.
func (d *Dataset) Subset(rows []int) (*Dataset, error) {
	for _, r := range rows {
		if r < 0 || r >= d.nRows {
			return nil, errors.NewValueError("dataset.Subset", "row index out of range")
		}
	}
	out := &Dataset{
		columns: make([]Column, len(d.columns)),
		index:   make(map[string]int, len(d.columns)),
		nRows:   len(rows),
	}
	for i, c := range d.columns {
		out.columns[i] = c.subset(rows)
		out.index[c.Name] = i
	}
	return out, nil
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		columns: make([]Column, len(d.columns)),
		index:   make(map[string]int, len(d.columns)),
		nRows:   d.nRows,
	}
	for i, c := range d.columns {
		out.columns[i] = c.clone()
		out.index[c.Name] = i
	}
	return out
}

// Select returns the named columns in the given order.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, err := d.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.nRows = d.nRows
	return out, nil
}

// Drop returns the dataset without the named columns. Every name must exist.
func (d *Dataset) Drop(names ...string) (*Dataset, error) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if !d.HasColumn(n) {
			return nil, errors.NewUnknownColumnError("drop", n, d.Names())
		}
		drop[n] = true
	}
	keep := make([]string, 0, len(d.columns))
	for _, c := range d.columns {
		if !drop[c.Name] {
			keep = append(keep, c.Name)
		}
	}
	return d.Select(keep...)
}

// Matrix returns the named numeric columns as an n×p matrix.
func (d *Dataset) Matrix(features []string) (*mat.Dense, error) {
	if d.nRows == 0 || len(features) == 0 {
		return nil, errors.NewModelError("dataset.Matrix", "empty data", errors.ErrEmptyData)
	}
	X := mat.NewDense(d.nRows, len(features), nil)
	for j, name := range features {
		c, err := d.Column(name)
		if err != nil {
			return nil, err
		}
		if c.Kind != Numeric {
			return nil, errors.NewValidationError(name, "predictor must be numeric; encode categorical columns first", c.Kind.String())
		}
		X.SetCol(j, c.Numbers)
	}
	return X, nil
}

// Target returns the named numeric column as a vector.
func (d *Dataset) Target(name string) (*mat.VecDense, error) {
	c, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Numeric {
		return nil, errors.NewValidationError("target", "target column must be numeric", name)
	}
	if d.nRows == 0 {
		return nil, errors.NewModelError("dataset.Target", "empty data", errors.ErrEmptyData)
	}
	return mat.NewVecDense(d.nRows, append([]float64(nil), c.Numbers...)), nil
}

// Fingerprint hashes the schema and every value with xxhash64. Two datasets
// with bit-identical contents have the same fingerprint.
func (d *Dataset) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, c := range d.columns {
		_, _ = h.WriteString(c.Name)
		_, _ = h.Write([]byte{0, byte(c.Kind)})
		if c.Kind == Categorical {
			for _, s := range c.Strings {
				_, _ = h.WriteString(s)
				_, _ = h.Write([]byte{0})
			}
			continue
		}
		for _, v := range c.Numbers {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			_, _ = h.Write(buf[:])
		}
	}
	return h.Sum64()
}

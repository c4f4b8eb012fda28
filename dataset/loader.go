package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

// LoadOptions controls CSV parsing.
type LoadOptions struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
	// Comment, when non-zero, marks lines to skip.
	Comment rune
	// Categorical forces the listed columns to be categorical even when all
	// values parse as numbers.
	Categorical []string
	// Compression overrides detection from the file extension.
	Compression Compression
}

// missing reports whether a cell is an absent value.
func missing(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "NA", "NaN", "nan", "null":
		return true
	}
	return false
}

// LoadCSV opens path, decompressing by extension, and parses it with ReadCSV.
func LoadCSV(path string, opts LoadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataIntegrityError(filepath.Base(path), 0, "", "cannot open file", err)
	}
	defer f.Close()

	if opts.Compression == "" {
		opts.Compression = DetectCompression(path)
	}
	r, release, err := decompress(f, opts.Compression)
	if err != nil {
		return nil, errors.NewDataIntegrityError(filepath.Base(path), 0, "", "cannot decompress", err)
	}
	defer release()

	// r is already decoded
	opts.Compression = CompressionNone
	return ReadCSV(r, filepath.Base(path), opts)
}

// ReadCSV parses a header row followed by data rows. A column is numeric when
// every cell parses as float64, otherwise categorical. Missing cells, ragged
// rows, duplicate or empty header names and empty input return a
// DataIntegrityError naming the row (header is row 1) and column.
func ReadCSV(r io.Reader, source string, opts LoadOptions) (*Dataset, error) {
	if opts.Compression != "" && opts.Compression != CompressionNone {
		dr, release, err := decompress(r, opts.Compression)
		if err != nil {
			return nil, errors.NewDataIntegrityError(source, 0, "", "cannot decompress", err)
		}
		defer release()
		r = dr
	}

	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.Comment = opts.Comment
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewDataIntegrityError(source, 1, "", "empty input, header row required", nil)
	}
	if err != nil {
		return nil, errors.NewDataIntegrityError(source, 1, "", "unreadable header", err)
	}
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h == "" {
			return nil, errors.NewDataIntegrityError(source, 1, strconv.Itoa(i+1), "empty column name", nil)
		}
		if seen[h] {
			return nil, errors.NewDataIntegrityError(source, 1, h, "duplicate column name", nil)
		}
		seen[h] = true
		header[i] = h
	}

	cells := make([][]string, len(header))
	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				row = pe.Line
			}
			return nil, errors.NewDataIntegrityError(source, row, "", "malformed CSV record", err)
		}
		if len(rec) != len(header) {
			return nil, errors.NewDataIntegrityError(source, row, "",
				"expected "+strconv.Itoa(len(header))+" fields, got "+strconv.Itoa(len(rec)), nil)
		}
		for j, v := range rec {
			cells[j] = append(cells[j], v)
		}
	}
	if row == 1 {
		return nil, errors.NewDataIntegrityError(source, 1, "", "no data rows", nil)
	}

	forced := make(map[string]bool, len(opts.Categorical))
	for _, name := range opts.Categorical {
		if !seen[name] {
			return nil, errors.NewUnknownColumnError("load", name, header)
		}
		forced[name] = true
	}

	columns := make([]Column, len(header))
	for j, name := range header {
		col, err := buildColumn(source, name, cells[j], forced[name])
		if err != nil {
			return nil, err
		}
		columns[j] = col
	}
	return New(columns...)
}

func buildColumn(source, name string, values []string, categorical bool) (Column, error) {
	for i, v := range values {
		if missing(v) {
			return Column{}, errors.NewDataIntegrityError(source, i+2, name, "missing value", nil)
		}
	}

	if !categorical {
		nums := make([]float64, len(values))
		numeric := true
		for i, v := range values {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				numeric = false
				break
			}
			nums[i] = f
		}
		if numeric {
			return NumericColumn(name, nums), nil
		}
	}

	levels := make([]string, len(values))
	for i, v := range values {
		levels[i] = strings.TrimSpace(v)
	}
	return CategoricalColumn(name, levels), nil
}

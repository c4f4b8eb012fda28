// Package report renders a finished tuning run as tables, a chart and
// Prometheus metrics.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/YuminosukeSato/penreg/pkg/errors"
	"github.com/YuminosukeSato/penreg/tune"
	"github.com/YuminosukeSato/penreg/workflow"
)

// Format selects how tables are written.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat accepts table, csv or json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	}
	return "", errors.NewValidationError("output.format", "must be one of table, csv, json", s)
}

// table is a header plus rows of preformatted cells.
type table struct {
	title  string
	header []string
	rows   [][]string
}

func (t *table) add(cells ...string) { t.rows = append(t.rows, cells) }

func (t *table) write(w io.Writer, f Format) error {
	switch f {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(t.header); err != nil {
			return err
		}
		if err := cw.WriteAll(t.rows); err != nil {
			return err
		}
		return cw.Error()
	default:
		if t.title != "" {
			if _, err := fmt.Fprintf(w, "%s\n", t.title); err != nil {
				return err
			}
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		writeRow(tw, t.header)
		for _, r := range t.rows {
			writeRow(tw, r)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w)
		return err
	}
}

func writeRow(w io.Writer, cells []string) {
	for _, c := range cells {
		fmt.Fprintf(w, "%s\t", c)
	}
	fmt.Fprintln(w)
}

func num(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }

func resultsTable(records []tune.MetricRecord) *table {
	t := &table{
		title:  "Cross-validation results",
		header: []string{"penalty", "mixture", "metric", "mean", "std_err", "n", "excluded"},
	}
	for _, r := range records {
		t.add(num(r.Penalty), num(r.Mixture), string(r.Metric), num(r.Mean), num(r.StdErr),
			strconv.Itoa(r.N), strconv.Itoa(r.Excluded))
	}
	return t
}

func bestTable(b tune.BestConfig) *table {
	t := &table{
		title:  "Best configuration",
		header: []string{"metric", "penalty", "mixture", "mean", "std_err"},
	}
	for _, r := range []*tune.MetricRecord{&b.ByRMSE, b.ByRSQ} {
		if r == nil {
			continue
		}
		t.add(string(r.Metric), num(r.Penalty), num(r.Mixture), num(r.Mean), num(r.StdErr))
	}
	return t
}

func coefficientTable(intercept float64, coefs []workflow.Coefficient) *table {
	t := &table{title: "Coefficients", header: []string{"term", "estimate"}}
	t.add("(Intercept)", num(intercept))
	for _, c := range coefs {
		t.add(c.Term, num(c.Estimate))
	}
	return t
}

func importanceTable(imp []workflow.Importance) *table {
	t := &table{title: "Variable importance", header: []string{"variable", "importance", "sign"}}
	for _, v := range imp {
		t.add(v.Variable, num(v.Importance), v.Sign)
	}
	return t
}

// WriteResults writes the metric records in the given order.
func WriteResults(w io.Writer, records []tune.MetricRecord, f Format) error {
	if f == FormatJSON {
		return writeJSON(w, records)
	}
	return resultsTable(records).write(w, f)
}

// WriteCoefficients writes the intercept followed by the ranked slopes.
func WriteCoefficients(w io.Writer, intercept float64, coefs []workflow.Coefficient, f Format) error {
	if f == FormatJSON {
		return writeJSON(w, struct {
			Intercept    float64                `json:"intercept"`
			Coefficients []workflow.Coefficient `json:"coefficients"`
		}{intercept, coefs})
	}
	return coefficientTable(intercept, coefs).write(w, f)
}

// WriteImportance writes the variable importance ranking.
func WriteImportance(w io.Writer, imp []workflow.Importance, f Format) error {
	if f == FormatJSON {
		return writeJSON(w, imp)
	}
	return importanceTable(imp).write(w, f)
}

// WriteReport writes the whole run. With top > 0 only the best top points per
// metric are listed in the results table. The excluded fold count is always
// written.
func WriteReport(w io.Writer, rep *workflow.Report, f Format, top int) error {
	if f == FormatJSON {
		return writeJSON(w, rep)
	}
	records := rep.Records
	if top > 0 {
		res := &tune.Result{Records: rep.Records}
		records = append(res.Sorted(tune.RMSE, tune.Minimize, top), res.Sorted(tune.RSQ, tune.Maximize, top)...)
	}

	summary := &table{title: "Run", header: []string{"key", "value"}}
	summary.add("run_id", rep.RunID)
	summary.add("source", rep.Source)
	summary.add("fingerprint", rep.Fingerprint)
	summary.add("rows", fmt.Sprintf("%d (train %d, test %d, strata %d)", rep.Rows, rep.TrainRows, rep.TestRows, rep.Strata))
	summary.add("grid", fmt.Sprintf("%d points x %d folds", rep.GridSize, rep.Folds))
	summary.add("excluded_fold_evaluations", strconv.Itoa(rep.Excluded))
	summary.add("omitted_points", strconv.Itoa(len(rep.Omitted)))
	summary.add("selected_by", string(rep.SelectedBy))
	summary.add("selected", fmt.Sprintf("penalty=%s mixture=%s", num(rep.Selected.Penalty), num(rep.Selected.Mixture)))
	summary.add("cv_rmse", fmt.Sprintf("%s (se %s)", num(rep.CV.Mean), num(rep.CV.StdErr)))
	summary.add("test_rmse", num(rep.Test.RMSE))
	rsq := "undefined"
	if rep.Test.RSQDefined {
		rsq = num(rep.Test.RSQ)
	}
	summary.add("test_rsq", rsq)

	for _, t := range []*table{
		summary,
		resultsTable(records),
		bestTable(rep.Best),
		coefficientTable(rep.Intercept, rep.Coefficients),
		importanceTable(rep.Importance),
	} {
		if err := t.write(w, f); err != nil {
			return err
		}
		if f == FormatCSV {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

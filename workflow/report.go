package workflow

import (
	"fmt"
	"time"

	"github.com/YuminosukeSato/penreg/core/model"
	"github.com/YuminosukeSato/penreg/pkg/errors"
	"github.com/YuminosukeSato/penreg/tune"
)

// Report summarises a finished run.
type Report struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	Source      string    `json:"source"`
	Target      string    `json:"target"`
	Fingerprint string    `json:"fingerprint"`
	Rows        int       `json:"rows"`
	TrainRows   int       `json:"train_rows"`
	TestRows    int       `json:"test_rows"`
	Strata      int       `json:"strata"`
	Folds       int       `json:"folds"`
	GridSize    int       `json:"grid_size"`
	Features    []string  `json:"features"`

	Records []tune.MetricRecord `json:"records"`
	Omitted []tune.Point        `json:"omitted,omitempty"`
	// Excluded counts failed fold evaluations and is always reported.
	Excluded int `json:"excluded"`

	Best       tune.BestConfig   `json:"best"`
	SelectedBy tune.Metric       `json:"selected_by"`
	Selected   tune.MetricRecord `json:"selected"`
	// CV is the cross-validated RMSE record of the selected point.
	CV tune.MetricRecord `json:"cv"`

	Test         Evaluation          `json:"test"`
	Intercept    float64             `json:"intercept"`
	Coefficients []Coefficient       `json:"coefficients"`
	Importance   []Importance        `json:"importance"`
	Weights      *model.ModelWeights `json:"weights"`
	Timings      Timings             `json:"timings"`
}

// Report assembles the report of a finalized workflow.
func (w *Workflow) Report() (*Report, error) {
	if err := w.require("Report", StateFinalized); err != nil {
		return nil, err
	}
	weights, err := w.final.Weights()
	if err != nil {
		return nil, err
	}
	cv, ok := w.result.Lookup(w.final.Point, tune.RMSE)
	if !ok {
		return nil, errors.Newf("no rmse record for the selected point %+v", w.final.Point)
	}
	return &Report{
		RunID:        w.runID,
		StartedAt:    w.started,
		Source:       w.source,
		Target:       w.cfg.Data.Target,
		Fingerprint:  fmt.Sprintf("%016x", w.data.Fingerprint()),
		Rows:         w.data.NumRows(),
		TrainRows:    w.split.Train.NumRows(),
		TestRows:     w.split.Test.NumRows(),
		Strata:       w.split.Strata,
		Folds:        w.result.Folds,
		GridSize:     len(w.result.Points),
		Features:     append([]string(nil), w.result.Features...),
		Records:      append([]tune.MetricRecord(nil), w.result.Records...),
		Omitted:      append([]tune.Point(nil), w.result.Omitted...),
		Excluded:     w.result.Excluded,
		Best:         *w.best,
		SelectedBy:   w.metric,
		Selected:     w.chosen,
		CV:           cv,
		Test:         w.eval,
		Intercept:    w.final.Intercept(),
		Coefficients: w.final.Coefficients(),
		Importance:   w.final.Importance(),
		Weights:      weights,
		Timings:      w.timings,
	}, nil
}

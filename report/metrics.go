package report

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YuminosukeSato/penreg/pkg/errors"
	"github.com/YuminosukeSato/penreg/tune"
	"github.com/YuminosukeSato/penreg/workflow"
)

// Metrics collects run metrics on its own registry. It implements
// tune.Observer and is safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	fits         *prometheus.CounterVec
	nonConverged prometheus.Counter
	fitDuration  prometheus.Histogram
	bestCV       *prometheus.GaugeVec
	testMetric   *prometheus.GaugeVec
	excluded     prometheus.Gauge
}

// NewMetrics registers the penreg collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		fits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "penreg_fold_fits_total",
				Help: "Total number of cross-validation fits by outcome",
			},
			[]string{"status"},
		),
		nonConverged: f.NewCounter(
			prometheus.CounterOpts{
				Name: "penreg_fold_fits_nonconverged_total",
				Help: "Total number of cross-validation fits whose solver did not converge",
			},
		),
		fitDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "penreg_fold_fit_duration_seconds",
				Help:    "Duration of one cross-validation fit in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		bestCV: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "penreg_cv_best_mean",
				Help: "Best cross-validated mean per metric",
			},
			[]string{"metric"},
		),
		testMetric: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "penreg_test_metric",
				Help: "Test set metric of the final model",
			},
			[]string{"metric"},
		),
		excluded: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "penreg_excluded_fold_evaluations",
				Help: "Number of fold evaluations excluded from aggregation",
			},
		),
	}
}

// ObserveFit records one cross-validation fit.
func (m *Metrics) ObserveFit(_ tune.Point, _ int, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
		if errors.IsNonConvergence(err) {
			m.nonConverged.Inc()
		}
	}
	m.fits.WithLabelValues(status).Inc()
	m.fitDuration.Observe(elapsed.Seconds())
}

// ObserveReport sets the gauges from a finished run.
func (m *Metrics) ObserveReport(rep *workflow.Report) {
	m.bestCV.WithLabelValues(string(tune.RMSE)).Set(rep.Best.ByRMSE.Mean)
	if rep.Best.ByRSQ != nil {
		m.bestCV.WithLabelValues(string(tune.RSQ)).Set(rep.Best.ByRSQ.Mean)
	}
	m.testMetric.WithLabelValues(string(tune.RMSE)).Set(rep.Test.RMSE)
	if rep.Test.RSQDefined {
		m.testMetric.WithLabelValues(string(tune.RSQ)).Set(rep.Test.RSQ)
	}
	m.excluded.Set(float64(rep.Excluded))
}

// Registry exposes the collectors, e.g. for a push gateway.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteToTextfile writes the metrics in the node exporter textfile format.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}

package report

import (
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/penreg/pkg/errors"
	"github.com/YuminosukeSato/penreg/tune"
)

// TuningPlot draws mean cross-validated metric against penalty with one line
// per mixture value. The selected point, if any, is marked.
func TuningPlot(records []tune.MetricRecord, metric tune.Metric, selected *tune.Point) (*plot.Plot, error) {
	byMixture := make(map[float64]plotter.XYs)
	for _, r := range records {
		if r.Metric != metric {
			continue
		}
		byMixture[r.Mixture] = append(byMixture[r.Mixture], plotter.XY{X: r.Penalty, Y: r.Mean})
	}
	if len(byMixture) == 0 {
		return nil, errors.NewValidationError("records", "no records to plot", string(metric))
	}
	mixtures := make([]float64, 0, len(byMixture))
	for m := range byMixture {
		mixtures = append(mixtures, m)
	}
	sort.Float64s(mixtures)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Cross-validated %s by penalty", metric)
	p.X.Label.Text = "penalty"
	p.Y.Label.Text = "mean " + string(metric)
	p.Add(plotter.NewGrid())

	for i, m := range mixtures {
		xys := byMixture[m]
		sort.Slice(xys, func(a, b int) bool { return xys[a].X < xys[b].X })
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, err
		}
		c := plotutil.Color(i)
		line.Color = c
		line.Width = vg.Points(1)
		points.GlyphStyle.Color = c
		points.GlyphStyle.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(fmt.Sprintf("mixture %g", m), line, points)
	}

	if selected != nil {
		for _, r := range records {
			if r.Metric == metric && r.Point() == *selected {
				s, err := plotter.NewScatter(plotter.XYs{{X: r.Penalty, Y: r.Mean}})
				if err != nil {
					return nil, err
				}
				s.GlyphStyle.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
				s.GlyphStyle.Radius = vg.Points(5)
				p.Add(s)
				p.Legend.Add("selected", s)
				break
			}
		}
	}
	return p, nil
}

// PlotTuning writes the tuning chart to path. The extension picks the image
// format (.png, .svg, .pdf).
func PlotTuning(path string, records []tune.MetricRecord, metric tune.Metric, selected *tune.Point) error {
	p, err := TuningPlot(records, metric, selected)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}
	return nil
}

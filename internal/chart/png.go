package chart

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/derickschaefer/atmosight/internal/analyze"
	"github.com/derickschaefer/atmosight/internal/model"
)

// Image size of the PNG charts.
const (
	ImageWidth  = 8 * vg.Inch
	ImageHeight = 4 * vg.Inch
)

var (
	seriesColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	meanColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	trendColor  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	fillColor   = color.RGBA{R: 31, G: 119, B: 180, A: 70}
	dashed      = []vg.Length{vg.Points(5), vg.Points(3)}
)

// TrendPNG writes a value-by-year chart of obs with a dashed mean line and,
// when trend is non-nil, the fitted regression line.
func TrendPNG(w io.Writer, title, unit string, obs []model.Observation, trend *analyze.TrendResult) error {
	var pts plotter.XYs
	var sum float64
	for _, o := range obs {
		if o.IsMissing() {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(o.Date.Year()), Y: o.Value})
		sum += o.Value
	}
	if len(pts) == 0 {
		return fmt.Errorf("trend chart: no values to plot")
	}
	mean := sum / float64(len(pts))
	x0, x1 := pts[0].X, pts[len(pts)-1].X

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Year"
	p.Y.Label.Text = unit
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Color = seriesColor
	line.LineStyle.Width = vg.Points(1.5)

	marks, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	marks.GlyphStyle.Color = seriesColor
	marks.GlyphStyle.Shape = draw.CircleGlyph{}
	marks.GlyphStyle.Radius = vg.Points(2.5)

	meanLine, err := plotter.NewLine(plotter.XYs{{X: x0, Y: mean}, {X: x1, Y: mean}})
	if err != nil {
		return err
	}
	meanLine.LineStyle.Color = meanColor
	meanLine.LineStyle.Dashes = dashed

	p.Add(line, marks, meanLine)
	p.Legend.Add("value", line, marks)
	p.Legend.Add(fmt.Sprintf("mean %.2f", mean), meanLine)

	if trend != nil {
		fit, err := plotter.NewLine(plotter.XYs{
			{X: x0, Y: trend.Intercept + trend.Slope*x0},
			{X: x1, Y: trend.Intercept + trend.Slope*x1},
		})
		if err != nil {
			return err
		}
		fit.LineStyle.Color = trendColor
		fit.LineStyle.Width = vg.Points(1)
		p.Add(fit)
		p.Legend.Add(fmt.Sprintf("trend %+.3f/yr", trend.Slope), fit)
	}
	p.Legend.Top = true

	return writePNG(w, p)
}

// DistributionPNG writes the filled normal curve for mean and std with dashed
// lines at the mean and at the extreme threshold. A zero std returns
// ErrDegenerate.
func DistributionPNG(w io.Writer, title, unit string, mean, std float64) error {
	xs, ys, err := Curve(mean, std)
	if err != nil {
		return err
	}
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	peak := ys[len(ys)/2]

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = unit
	p.Y.Label.Text = "Density"
	p.Add(plotter.NewGrid())

	curve, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	curve.LineStyle.Color = seriesColor
	curve.LineStyle.Width = vg.Points(1.5)
	curve.FillColor = fillColor
	p.Add(curve)

	threshold := mean + analyze.ExceedanceSigmas*std
	for _, m := range []struct {
		x     float64
		c     color.Color
		label string
	}{
		{mean, meanColor, fmt.Sprintf("mean %.2f", mean)},
		{threshold, trendColor, fmt.Sprintf("extreme > %.2f", threshold)},
	} {
		l, err := plotter.NewLine(plotter.XYs{{X: m.x, Y: 0}, {X: m.x, Y: peak}})
		if err != nil {
			return err
		}
		l.LineStyle.Color = m.c
		l.LineStyle.Dashes = dashed
		p.Add(l)
		p.Legend.Add(m.label, l)
	}
	p.Legend.Top = true

	return writePNG(w, p)
}

func writePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(ImageWidth, ImageHeight, "png")
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

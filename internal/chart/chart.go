// Package chart draws day-of-year samples in the terminal and as PNG images.
// The terminal renderers are:
//
//   - Bar: horizontal bar chart, one bar per year
//   - Plot: value-by-year scatter with the mean and, when known, the fitted trend
//   - Distribution: the normal bell curve implied by the sample mean and σ
//
// Missing values are gaps, never zeros.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/derickschaefer/atmosight/internal/analyze"
	"github.com/derickschaefer/atmosight/internal/model"
)

// ErrDegenerate is returned for distribution charts of a sample whose
// standard deviation is zero.
var ErrDegenerate = errors.New("distribution undefined: standard deviation is zero")

// Curve parameters for Distribution and DistributionPNG.
const (
	CurveSamples = 200
	CurveSigmas  = 4.0
)

// ─── Bar ─────────────────────────────────────────────────────────────────────

// BarOptions controls horizontal bar chart rendering.
type BarOptions struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Mark, when set, flags every bar whose value is strictly above it.
	Mark *float64
}

// Bar renders one horizontal bar per observation, labelled by year.
//
//	T2M  1991 – 1994
//	1991  30.1  ██████████
//	1992  33.9  ████████████████ ▲
func Bar(w io.Writer, title string, obs []model.Observation, opts BarOptions) error {
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}

	var valid []model.Observation
	for _, o := range obs {
		if !o.IsMissing() {
			valid = append(valid, o)
		}
	}
	if len(valid) == 0 {
		return fmt.Errorf("chart bar: no values to render")
	}

	lo, hi := valueRange(valid)
	valWidth := 0
	for _, o := range valid {
		if l := len(formatFloat(o.Value)); l > valWidth {
			valWidth = l
		}
	}

	// year(4) + two gaps(4) + marker(2)
	barArea := totalWidth - valWidth - 10
	if barArea < 4 {
		barArea = 4
	}

	// Non-negative samples scale from their minimum; negative ones get a
	// zero line.
	signed := lo < 0
	base, top := lo, hi
	if signed {
		top = math.Max(0, hi)
	}
	if top == base {
		top = base + 1
	}
	zeroCol := int(math.Round(-base / (top - base) * float64(barArea-1)))

	fmt.Fprintf(w, "%s  %d – %d\n", title, valid[0].Date.Year(), valid[len(valid)-1].Date.Year())
	for _, o := range valid {
		marker := ""
		if opts.Mark != nil && o.Value > *opts.Mark {
			marker = " ▲"
		}
		fmt.Fprintf(w, "%d  %*s  %s%s\n",
			o.Date.Year(), valWidth, formatFloat(o.Value),
			barFrom(o.Value, base, top, barArea, zeroCol, signed), marker)
	}
	return nil
}

func barFrom(v, base, top float64, width, zeroCol int, signed bool) string {
	col := int(math.Round((v - base) / (top - base) * float64(width-1)))
	if !signed {
		if col < 1 {
			col = 1
		}
		return strings.Repeat("█", col)
	}
	buf := []rune(strings.Repeat(" ", width))
	buf[zeroCol] = '│'
	from, to := zeroCol+1, col
	if v < 0 {
		from, to = col, zeroCol-1
	}
	for i := from; i <= to && i < width; i++ {
		if i >= 0 {
			buf[i] = '█'
		}
	}
	return strings.TrimRight(string(buf), " ")
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

// PlotOptions controls the value-by-year plot.
type PlotOptions struct {
	// Width is the total character width including the Y-axis labels.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Height is the number of rows in the chart body. If 0, defaults to 12.
	Height int
	// Title overrides the default title.
	Title string
	// ShowMean draws the sample mean as a dotted horizontal line.
	ShowMean bool
	// Trend, when set, is drawn across the plot.
	Trend *analyze.TrendResult
}

// Plot renders every year of obs as a point, with gaps for missing years.
func Plot(w io.Writer, title string, obs []model.Observation, opts PlotOptions) error {
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 12
	}
	if opts.Title != "" {
		title = opts.Title
	}

	var present []float64
	for _, o := range obs {
		if !o.IsMissing() {
			present = append(present, o.Value)
		}
	}
	if len(present) < 2 {
		return fmt.Errorf("chart plot: need at least 2 values (got %d)", len(present))
	}
	lo, hi := minMax(present)

	ticks := yTicks(lo, hi, height)
	labelWidth := 0
	for _, t := range ticks {
		if l := len(formatFloat(t)); l > labelWidth {
			labelWidth = l
		}
	}
	plotWidth := width - labelWidth - 1
	if plotWidth < 10 {
		plotWidth = 10
	}

	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", plotWidth))
	}
	rowOf := func(v float64) int {
		r := int(math.Round(rowForValue(v, lo, hi, height)))
		return clamp(r, 0, height-1)
	}

	if opts.ShowMean {
		var sum float64
		for _, v := range present {
			sum += v
		}
		r := rowOf(sum / float64(len(present)))
		for c := range grid[r] {
			grid[r][c] = '┄'
		}
	}

	first, last := obs[0].Date.Year(), obs[len(obs)-1].Date.Year()
	colOf := func(year float64) int {
		if last == first {
			return 0
		}
		return int(math.Round((year - float64(first)) / float64(last-first) * float64(plotWidth-1)))
	}

	if t := opts.Trend; t != nil {
		for c := 0; c < plotWidth; c++ {
			year := float64(first) + float64(c)/float64(plotWidth-1)*float64(last-first)
			y := t.Intercept + t.Slope*year
			if y < lo || y > hi {
				continue
			}
			grid[rowOf(y)][c] = '·'
		}
	}

	for _, o := range obs {
		if o.IsMissing() {
			continue
		}
		grid[rowOf(o.Value)][colOf(float64(o.Date.Year()))] = '●'
	}

	fmt.Fprintf(w, "%s  (%d to %d)\n", title, first, last)
	for row := 0; row < height; row++ {
		label := ""
		for _, t := range ticks {
			if math.Abs(rowForValue(t, lo, hi, height)-float64(row)) < 0.5 {
				label = formatFloat(t)
				break
			}
		}
		axis := " "
		if label != "" {
			axis = "┤"
		}
		fmt.Fprintf(w, "%*s%s%s\n", labelWidth, label, axis, string(grid[row]))
	}
	fmt.Fprintf(w, "%s└%s\n", strings.Repeat(" ", labelWidth), strings.Repeat("─", plotWidth))
	fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", labelWidth),
		spread(plotWidth, strconv.Itoa(first), strconv.Itoa((first+last)/2), strconv.Itoa(last)))
	return nil
}

// ─── Distribution ────────────────────────────────────────────────────────────

// Curve samples the normal density N(mean, std) over mean ± CurveSigmas·std.
func Curve(mean, std float64) (xs, ys []float64, err error) {
	if !(std > 0) || math.IsNaN(mean) || math.IsInf(std, 0) {
		return nil, nil, ErrDegenerate
	}
	n := distuv.Normal{Mu: mean, Sigma: std}
	lo := mean - CurveSigmas*std
	step := 2 * CurveSigmas * std / float64(CurveSamples-1)
	xs = make([]float64, CurveSamples)
	ys = make([]float64, CurveSamples)
	for i := range xs {
		xs[i] = lo + float64(i)*step
		ys[i] = n.Prob(xs[i])
	}
	return xs, ys, nil
}

// DistOptions controls the terminal bell curve.
type DistOptions struct {
	Width  int
	Height int // defaults to 10
	// Values are drawn as ticks beneath the axis.
	Values []float64
}

// Distribution draws the bell curve for mean and std, marking the mean and
// the extreme threshold at mean + 2σ.
func Distribution(w io.Writer, title string, mean, std float64, opts DistOptions) error {
	xs, ys, err := Curve(mean, std)
	if err != nil {
		return err
	}
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 10
	}
	plotWidth := clamp(width-2, 10, CurveSamples)

	peak := ys[CurveSamples/2]
	for _, y := range ys {
		peak = math.Max(peak, y)
	}
	colOf := func(x float64) int {
		return int(math.Round((x - xs[0]) / (xs[len(xs)-1] - xs[0]) * float64(plotWidth-1)))
	}
	meanCol := colOf(mean)
	threshCol := colOf(mean + analyze.ExceedanceSigmas*std)

	fmt.Fprintf(w, "%s  (mean %s, σ %s)\n", title, formatFloat(mean), formatFloat(std))
	for row := 0; row < height; row++ {
		level := float64(height-row) / float64(height) * peak
		var sb strings.Builder
		for c := 0; c < plotWidth; c++ {
			y := ys[c*(CurveSamples-1)/(plotWidth-1)]
			switch {
			case y >= level:
				sb.WriteRune('█')
			case c == meanCol:
				sb.WriteRune('│')
			case c == threshCol:
				sb.WriteRune('┆')
			default:
				sb.WriteRune(' ')
			}
		}
		fmt.Fprintf(w, " %s\n", strings.TrimRight(sb.String(), " "))
	}
	fmt.Fprintf(w, " %s\n", strings.Repeat("─", plotWidth))

	if len(opts.Values) > 0 {
		rug := []rune(strings.Repeat(" ", plotWidth))
		for _, v := range opts.Values {
			if c := colOf(v); c >= 0 && c < plotWidth && !math.IsNaN(v) {
				rug[c] = '╵'
			}
		}
		fmt.Fprintf(w, " %s\n", strings.TrimRight(string(rug), " "))
	}
	fmt.Fprintf(w, " %s\n", spread(plotWidth, formatFloat(xs[0]), formatFloat(mean), formatFloat(xs[len(xs)-1])))
	fmt.Fprintf(w, " ┆ extreme threshold %s\n", formatFloat(mean+analyze.ExceedanceSigmas*std))
	return nil
}

// ─── Axis helpers ─────────────────────────────────────────────────────────────

// rowForValue returns the float row index (0=top=max) for a given value.
func rowForValue(v, lo, hi float64, height int) float64 {
	if hi == lo {
		return float64(height) / 2
	}
	return (hi - v) / (hi - lo) * float64(height-1)
}

// yTicks returns evenly spaced tick values for the Y axis.
func yTicks(lo, hi float64, height int) []float64 {
	if hi == lo {
		return []float64{lo}
	}
	n := 4
	if height <= 6 {
		n = 3
	}
	ticks := make([]float64, n)
	for i := range ticks {
		ticks[i] = lo + float64(i)*(hi-lo)/float64(n-1)
	}
	return ticks
}

// spread places labels at the left edge, centre and right edge of a field.
func spread(width int, left, mid, right string) string {
	buf := []rune(strings.Repeat(" ", width))
	put := func(pos int, s string) {
		for i, ch := range []rune(s) {
			if pos+i >= 0 && pos+i < len(buf) {
				buf[pos+i] = ch
			}
		}
	}
	put(0, left)
	put(width/2-len(mid)/2, mid)
	put(width-len(right), right)
	return string(buf)
}

// ─── Utilities ────────────────────────────────────────────────────────────────

func valueRange(obs []model.Observation) (float64, float64) {
	vals := make([]float64, len(obs))
	for i, o := range obs {
		vals[i] = o.Value
	}
	return minMax(vals)
}

func minMax(vals []float64) (float64, float64) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// formatFloat formats a float for axis labels: no unnecessary trailing zeros,
// at least one decimal place.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	abs := math.Abs(v)
	var s string
	switch {
	case abs == 0:
		return "0"
	case abs >= 1e3:
		s = strconv.FormatFloat(v, 'f', 0, 64)
		return s
	case abs >= 1:
		s = strconv.FormatFloat(v, 'f', 2, 64)
	default:
		s = strconv.FormatFloat(v, 'f', 4, 64)
	}
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}

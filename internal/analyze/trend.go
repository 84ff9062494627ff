package analyze

import (
	"github.com/derickschaefer/atmosight/internal/model"
)

// ─── Trend ────────────────────────────────────────────────────────────────────

// Direction is the sign of a fitted slope.
type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Stable     Direction = "stable"
)

// TrendResult holds an ordinary least squares fit of value against year.
type TrendResult struct {
	Slope     float64   `json:"slope"` // units per year
	Intercept float64   `json:"intercept"`
	R2        float64   `json:"r2"`
	Direction Direction `json:"direction"`
	Years     int       `json:"years"` // distinct years in the fit
}

// EstimateTrend fits value = slope·year + intercept over the present values
// of d. Returns ok=false when fewer than two distinct years are available.
func EstimateTrend(d model.DaySample) (TrendResult, bool) {
	var pts []point
	years := make(map[int]struct{})
	for _, o := range d.Obs {
		if o.IsMissing() {
			continue
		}
		y := o.Date.Year()
		years[y] = struct{}{}
		pts = append(pts, point{float64(y), o.Value})
	}
	tr := TrendResult{Years: len(years)}
	if len(years) < 2 {
		return tr, false
	}

	tr.Slope, tr.Intercept = olsRegress(pts)
	tr.R2 = r2(pts, tr.Slope, tr.Intercept)
	tr.Direction = classifySlope(tr.Slope)
	return tr, true
}

func classifySlope(slope float64) Direction {
	switch {
	case slope > 0:
		return Increasing
	case slope < 0:
		return Decreasing
	default:
		return Stable
	}
}

type point struct{ x, y float64 }

// olsRegress uses centred sums so calendar-year magnitudes do not cost
// precision. Constant y yields a slope of exactly zero.
func olsRegress(pts []point) (slope, intercept float64) {
	n := float64(len(pts))
	var xSum, ySum float64
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xSum += p.x
		ySum += p.y
		ys[i] = p.y
	}
	xMean, yMean := xSum/n, ySum/n
	if allEqual(ys) {
		return 0, ys[0]
	}

	var sxy, sxx float64
	for _, p := range pts {
		dx := p.x - xMean
		sxy += dx * (p.y - yMean)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0, yMean
	}
	slope = sxy / sxx
	intercept = yMean - slope*xMean
	return slope, intercept
}

func r2(pts []point, slope, intercept float64) float64 {
	var yMean float64
	for _, p := range pts {
		yMean += p.y
	}
	yMean /= float64(len(pts))

	var ssTot, ssRes float64
	for _, p := range pts {
		pred := slope*p.x + intercept
		ssTot += (p.y - yMean) * (p.y - yMean)
		ssRes += (p.y - pred) * (p.y - pred)
	}
	if ssTot == 0 {
		return 1
	}
	return 1 - ssRes/ssTot
}

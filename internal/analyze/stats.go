package analyze

import (
	"math"

	"github.com/derickschaefer/atmosight/internal/model"
)

// ─── Descriptive Statistics ───────────────────────────────────────────────────

// ExceedanceSigmas is the number of standard deviations above the mean a
// value must strictly exceed to count as a rare extreme.
const ExceedanceSigmas = 2.0

// Stats holds descriptive statistics for a day sample.
// It is only produced when at least one present value exists.
type Stats struct {
	Count      int     `json:"count"`   // present values
	Missing    int     `json:"missing"` // missing values excluded from aggregates
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"` // population (divisor N)
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Threshold  float64 `json:"exceedance_threshold"` // mean + 2σ
	Exceedance float64 `json:"exceedance_frequency"` // fraction of values > Threshold
}

// Describe computes descriptive statistics over the present values of d.
// Returns ok=false when d has no present values.
func Describe(d model.DaySample) (Stats, bool) {
	vals := d.Present()
	s := Stats{Count: len(vals), Missing: len(d.Obs) - len(vals)}
	if len(vals) == 0 {
		return s, false
	}

	s.Min, s.Max = minmax(vals)
	s.Mean, s.StdDev = meanStd(vals)
	s.Threshold = s.Mean + ExceedanceSigmas*s.StdDev
	s.Exceedance = ExceedanceFrequency(vals, s.Mean, s.StdDev)
	return s, true
}

// ExceedanceFrequency returns the fraction of vals strictly greater than
// mean + 2·std. A zero std always yields 0, as does an empty slice.
func ExceedanceFrequency(vals []float64, mean, std float64) float64 {
	if len(vals) == 0 || std == 0 {
		return 0
	}
	limit := mean + ExceedanceSigmas*std
	n := 0
	for _, v := range vals {
		if v > limit {
			n++
		}
	}
	return float64(n) / float64(len(vals))
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func sumF(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

// meanStd returns the arithmetic mean and population standard deviation.
func meanStd(vals []float64) (mean, std float64) {
	mean = sumF(vals) / float64(len(vals))
	if allEqual(vals) {
		return vals[0], 0
	}
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(vals)))
}

func minmax(vals []float64) (lo, hi float64) {
	lo, hi = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func allEqual(vals []float64) bool {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return false
		}
	}
	return true
}

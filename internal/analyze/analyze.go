package analyze

import (
	"github.com/derickschaefer/atmosight/internal/model"
)

// Status summarises which stages of an Analysis produced a result.
type Status string

const (
	StatusOK               Status = "ok"
	StatusNoData           Status = "no_data"
	StatusInsufficientData Status = "insufficient_data"
)

// Analysis is the outcome of running the pipeline for one day-of-year.
// A nil Stats means no data; a nil Trend or Insight means insufficient data.
type Analysis struct {
	DayOfYear int             `json:"day_of_year"`
	Sample    model.DaySample `json:"day_sample"`
	Stats     *Stats          `json:"stats"`
	Trend     *TrendResult    `json:"trend"`
	Insight   *Insight        `json:"insight"`
	Status    Status          `json:"status"`
}

// Analyze selects doy from s and runs statistics, trend and insight over it.
// It never fails: missing results are reported through Status and nil fields.
func Analyze(s model.Series, doy int) Analysis {
	a := Analysis{DayOfYear: doy, Sample: SelectDay(s, doy)}

	if st, ok := Describe(a.Sample); ok {
		a.Stats = &st
	}
	if tr, ok := EstimateTrend(a.Sample); ok {
		a.Trend = &tr
	}
	if in, ok := Classify(a.Stats, a.Trend); ok {
		a.Insight = &in
	}

	switch {
	case a.Stats == nil:
		a.Status = StatusNoData
	case a.Trend == nil:
		a.Status = StatusInsufficientData
	default:
		a.Status = StatusOK
	}
	return a
}

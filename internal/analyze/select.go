package analyze

import (
	"time"

	"github.com/derickschaefer/atmosight/internal/model"
)

// ─── Day-of-Year Selector ─────────────────────────────────────────────────────

// MaxDayOfYear is the largest ordinal day in a leap year.
const MaxDayOfYear = 366

// DayOfYear returns the ordinal day of t within its calendar year (1-366).
func DayOfYear(t time.Time) int {
	return t.YearDay()
}

// SelectDay extracts every observation of s whose day-of-year equals doy,
// in chronological order. Day 366 only matches leap years. A target outside
// [1, 366] yields an empty sample.
func SelectDay(s model.Series, doy int) model.DaySample {
	sample := model.DaySample{Variable: s.Variable, DayOfYear: doy}
	if doy < 1 || doy > MaxDayOfYear {
		return sample
	}
	for _, o := range s.Obs {
		if o.Date.YearDay() == doy {
			sample.Obs = append(sample.Obs, o)
		}
	}
	return sample
}

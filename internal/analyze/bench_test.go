package analyze

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/derickschaefer/atmosight/internal/model"
)

// dailyRaw builds a raw series with one value for every day of the given
// years, shaped like a daily point response.
func dailyRaw(startYear, years int) model.RawSeries {
	raw := model.RawSeries{}
	d := time.Date(startYear, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(startYear+years, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; d.Before(end); i++ {
		v := 20 + 10*math.Sin(float64(d.YearDay())/58.1) + float64(i%7)/10
		if i%97 == 0 {
			raw[d.Format("20060102")] = "-999"
		} else {
			raw[d.Format("20060102")] = fmt.Sprintf("%.2f", v)
		}
		d = d.AddDate(0, 0, 1)
	}
	return raw
}

// Run: go test ./internal/analyze -bench=. -benchmem
func BenchmarkNormalize35Years(b *testing.B) {
	raw := dailyRaw(1991, 35)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s, _ := Normalize("T2M", raw)
		if len(s.Obs) == 0 {
			b.Fatal("empty series")
		}
	}
}

func BenchmarkAnalyze35Years(b *testing.B) {
	s, _ := Normalize("T2M", dailyRaw(1991, 35))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a := Analyze(s, 200)
		if a.Status != StatusOK {
			b.Fatalf("status %s", a.Status)
		}
	}
}

package pipeline

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/derickschaefer/atmosight/internal/model"
)

func benchObs(n int) []model.Observation {
	obs := make([]model.Observation, n)
	d := time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range obs {
		v := 20 + 5*math.Sin(float64(i)/30)
		if i%50 == 0 {
			v = math.NaN()
		}
		obs[i] = model.Observation{Date: d.AddDate(0, 0, i), Value: v}
	}
	return obs
}

// Run: go test ./internal/pipeline -bench=. -benchmem
func BenchmarkWriteJSONL(b *testing.B) {
	obs := benchObs(12000)
	var buf bytes.Buffer
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if err := WriteJSONL(&buf, "T2M", obs); err != nil {
			b.Fatal(err)
		}
	}
	b.SetBytes(int64(buf.Len()))
}

func BenchmarkReadSeries(b *testing.B) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, "T2M", benchObs(12000)); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		list, err := ReadSeries(bytes.NewReader(data))
		if err != nil || len(list) != 1 {
			b.Fatalf("read: %v", err)
		}
	}
}

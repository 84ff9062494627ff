package pipeline_test

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/pipeline"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// jsonl joins lines with newlines and appends a trailing newline.
func jsonl(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func mkobs(year int, value float64, raw string) model.Observation {
	return model.Observation{
		Date:     time.Date(year, 7, 19, 0, 0, 0, 0, time.UTC),
		Value:    value,
		ValueRaw: raw,
	}
}

// ─── ReadSeries ───────────────────────────────────────────────────────────────

func TestReadSeriesGroupsByID(t *testing.T) {
	input := jsonl(
		`{"series_id":"T2M","date":"2020-07-19","value":31.2,"value_raw":"31.2"}`,
		`{"series_id":"WS2M","date":"2020-07-19","value":3.1,"value_raw":"3.1"}`,
		`{"series_id":"T2M","date":"2021-07-19","value":32.0,"value_raw":"32.0"}`,
	)
	list, err := pipeline.ReadSeries(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 series, got %d", len(list))
	}
	if list[0].Variable != "T2M" || len(list[0].Obs) != 2 {
		t.Errorf("first series: %+v", list[0])
	}
	if list[1].Variable != "WS2M" || list[1].Obs[0].Value != 3.1 {
		t.Errorf("second series: %+v", list[1])
	}
}

func TestReadValueForms(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    float64 // NaN = missing
		wantRaw string
	}{
		{"float", `20.5`, 20.5, "20.5"},
		{"null", `null`, math.NaN(), ""},
		{"empty string", `""`, math.NaN(), ""},
		{"dot", `"."`, math.NaN(), ""},
		{"numeric string", `"12.25"`, 12.25, "12.25"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			line := fmt.Sprintf(`{"series_id":"T2M","date":"2020-01-01","value":%s}`, tc.value)
			s, err := pipeline.ReadObservations(strings.NewReader(line), "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := s.Obs[0]
			if math.IsNaN(tc.want) != got.IsMissing() || (!got.IsMissing() && got.Value != tc.want) {
				t.Errorf("value: got %v, want %v", got.Value, tc.want)
			}
			if got.ValueRaw != tc.wantRaw {
				t.Errorf("value_raw: got %q, want %q", got.ValueRaw, tc.wantRaw)
			}
		})
	}
}

func TestReadSkipsBlankAndCommentLines(t *testing.T) {
	input := jsonl(
		`// obs get T2M`,
		``,
		`{"series_id":"T2M","date":"2020-01-01","value":1}`,
		`   `,
	)
	s, err := pipeline.ReadObservations(strings.NewReader(input), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Obs) != 1 {
		t.Errorf("expected 1 observation, got %d", len(s.Obs))
	}
}

func TestReadErrors(t *testing.T) {
	tests := map[string]string{
		"empty":        "",
		"blank only":   "\n\n  \n",
		"invalid json": `{"date":`,
		"invalid date": `{"date":"2020-13-01","value":1}`,
		"bad string":   `{"date":"2020-01-01","value":"abc"}`,
		"bad type":     `{"date":"2020-01-01","value":true}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := pipeline.ReadSeries(strings.NewReader(input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadErrorReportsLine(t *testing.T) {
	input := jsonl(
		`{"date":"2020-01-01","value":1}`,
		`{"date":"bad","value":1}`,
	)
	_, err := pipeline.ReadSeries(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line 2 in error, got %v", err)
	}
}

// ─── ReadObservations ─────────────────────────────────────────────────────────

func TestReadObservationsRejectsMixedInput(t *testing.T) {
	input := jsonl(
		`{"series_id":"T2M","date":"2020-01-01","value":1}`,
		`{"series_id":"RH2M","date":"2020-01-01","value":70}`,
	)
	_, err := pipeline.ReadObservations(strings.NewReader(input), "")
	if err == nil || !strings.Contains(err.Error(), "RH2M, T2M") {
		t.Errorf("expected mixed-series error, got %v", err)
	}

	s, err := pipeline.ReadObservations(strings.NewReader(input), "rh2m")
	if err != nil {
		t.Fatal(err)
	}
	if s.Variable != "RH2M" || s.Obs[0].Value != 70 {
		t.Errorf("selected: %+v", s)
	}

	if _, err := pipeline.ReadObservations(strings.NewReader(input), "WS2M"); err == nil {
		t.Error("expected error for absent series")
	}
}

func TestReadLargeInput(t *testing.T) {
	var sb strings.Builder
	start := time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12000; i++ {
		fmt.Fprintf(&sb, `{"series_id":"T2M","date":"%s","value":%d}`+"\n", start.AddDate(0, 0, i).Format("2006-01-02"), i%40)
	}
	s, err := pipeline.ReadObservations(strings.NewReader(sb.String()), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Obs) != 12000 {
		t.Errorf("expected 12000 observations, got %d", len(s.Obs))
	}
}

// ─── WriteJSONL ───────────────────────────────────────────────────────────────

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	err := pipeline.WriteJSONL(&buf, "T2M", []model.Observation{
		mkobs(2020, 31.5, "31.5"),
		mkobs(2021, math.NaN(), ""),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := jsonl(
		`{"series_id":"T2M","date":"2020-07-19","value":31.5,"value_raw":"31.5"}`,
		`{"series_id":"T2M","date":"2021-07-19","value":null,"value_raw":""}`,
	)
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteEmptySlice(t *testing.T) {
	var buf bytes.Buffer
	if err := pipeline.WriteJSONL(&buf, "T2M", nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestRoundTrip(t *testing.T) {
	original := []model.Observation{
		mkobs(2019, 29.75, "29.75"),
		mkobs(2020, math.NaN(), ""),
		mkobs(2021, -1.5, "-1.5"),
	}
	var buf bytes.Buffer
	if err := pipeline.WriteJSONL(&buf, "T2M", original); err != nil {
		t.Fatal(err)
	}
	s, err := pipeline.ReadObservations(&buf, "")
	if err != nil {
		t.Fatal(err)
	}
	if s.Variable != "T2M" || len(s.Obs) != len(original) {
		t.Fatalf("round trip: %+v", s)
	}
	for i, o := range original {
		got := s.Obs[i]
		if !got.Date.Equal(o.Date) || got.ValueRaw != o.ValueRaw || got.IsMissing() != o.IsMissing() {
			t.Errorf("obs %d: got %+v, want %+v", i, got, o)
		}
		if !o.IsMissing() && got.Value != o.Value {
			t.Errorf("obs %d value: got %v, want %v", i, got.Value, o.Value)
		}
	}
}

package util_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/derickschaefer/atmosight/internal/util"
)

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2024, 7, 19, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-07-19", "20240719", " 20240719 "} {
		got, err := util.ParseDate(in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", in, err)
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "2024-13-01", "2024071", "July 19"} {
		if _, err := util.ParseDate(in); err == nil {
			t.Errorf("ParseDate(%q): expected error", in)
		}
	}
}

func TestParseObsValue(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		missing bool
		wantErr bool
	}{
		{in: "21.5", want: 21.5},
		{in: " -3 ", want: -3},
		{in: "", missing: true},
		{in: ".", missing: true},
		{in: "null", missing: true},
		{in: "NaN", missing: true},
		{in: "abc", wantErr: true},
		{in: "+Inf", wantErr: true},
	}
	for _, tt := range tests {
		got, err := util.ParseObsValue(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseObsValue(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseObsValue(%q): %v", tt.in, err)
			continue
		}
		if tt.missing {
			if !math.IsNaN(got) {
				t.Errorf("ParseObsValue(%q) = %g, want NaN", tt.in, got)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseObsValue(%q) = %g, want %g", tt.in, got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	if got := util.FormatValue(math.NaN()); got != "." {
		t.Errorf("NaN: got %q", got)
	}
	if got := util.FormatValue(3.25); got != "3.25" {
		t.Errorf("3.25: got %q", got)
	}
}

func TestMultiError(t *testing.T) {
	var m util.MultiError
	if m.Err() != nil {
		t.Fatal("empty MultiError should be nil")
	}
	sentinel := errors.New("boom")
	m.Add(nil)
	m.Add(sentinel)
	m.Add(errors.New("bang"))
	err := m.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "boom; bang" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should find the sentinel")
	}
}

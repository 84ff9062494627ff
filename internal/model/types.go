// Package model defines the canonical data types used throughout atmosight.
// These types are the single source of truth for observations, series, and
// the result envelope that every command returns.
package model

import (
	"encoding/json"
	"math"
	"time"
)

// ─── Location Types ───────────────────────────────────────────────────────────

// Coordinates is a point in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Variable describes one physical quantity published by the climate service.
type Variable struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Unit  string `json:"unit"`
}

// Title returns the display name with its code, e.g. "Temperature (T2M)".
func (v Variable) Title() string {
	return v.Label + " (" + v.Code + ")"
}

// Place is a geocoded location name.
type Place struct {
	Query string  `json:"query"`
	Name  string  `json:"name"` // display name from the geocoder
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Coordinates returns the point of p.
func (p Place) Coordinates() Coordinates {
	return Coordinates{Lat: p.Lat, Lon: p.Lon}
}

// ─── Time Series Types ────────────────────────────────────────────────────────

// RawSeries is an unparsed mapping of date string to value text, exactly as
// delivered by the upstream service for one variable. An empty value text
// marks an explicitly missing observation.
type RawSeries map[string]string

// Observation is a single data point in a time series.
// Value is NaN when the raw value is missing.
// ValueRaw preserves the original text from the upstream response.
type Observation struct {
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
	ValueRaw string    `json:"value_raw"`
}

// IsMissing returns true if the observation value is NaN (missing data).
func (o Observation) IsMissing() bool {
	return math.IsNaN(o.Value)
}

type observationJSON struct {
	Date     string   `json:"date"`
	Value    *float64 `json:"value"`
	ValueRaw string   `json:"value_raw,omitempty"`
}

// MarshalJSON writes the date as YYYY-MM-DD and a missing value as null.
func (o Observation) MarshalJSON() ([]byte, error) {
	out := observationJSON{Date: o.Date.Format("2006-01-02"), ValueRaw: o.ValueRaw}
	if !o.IsMissing() {
		v := o.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON; null becomes NaN.
func (o *Observation) UnmarshalJSON(b []byte) error {
	var in observationJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	d, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return err
	}
	o.Date, o.ValueRaw, o.Value = d, in.ValueRaw, math.NaN()
	if in.Value != nil {
		o.Value = *in.Value
	}
	return nil
}

// Series is an ordered run of observations for one variable.
// Obs is sorted ascending by date and holds no duplicate dates.
type Series struct {
	Variable string        `json:"variable"`
	Obs      []Observation `json:"observations"`
}

// DaySample is the subset of a Series that falls on a single day-of-year,
// one observation per year at most, in chronological order.
type DaySample struct {
	Variable  string        `json:"variable"`
	DayOfYear int           `json:"day_of_year"`
	Obs       []Observation `json:"observations"`
}

// Present returns the non-missing values of the sample in date order.
func (d DaySample) Present() []float64 {
	vals := make([]float64, 0, len(d.Obs))
	for _, o := range d.Obs {
		if !o.IsMissing() {
			vals = append(vals, o.Value)
		}
	}
	return vals
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries performance and cache metadata for a command result.
type ResultStats struct {
	CacheHit   bool  `json:"cache_hit"`
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindAnalysis   = "analysis"
	KindSeriesData = "series_data"
	KindGeocode    = "geocode"
	KindVariables  = "variables"
	KindReports    = "reports"
)

// Package service runs one day-of-year analysis end to end: it resolves the
// location, obtains the raw series through the cache, normalizes it and
// hands it to the analysis pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"github.com/derickschaefer/atmosight/internal/analyze"
	"github.com/derickschaefer/atmosight/internal/dataset"
	"github.com/derickschaefer/atmosight/internal/geocode"
	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/observability"
	"github.com/derickschaefer/atmosight/internal/power"
)

// DefaultStartYear is the first year of the analysis window.
const DefaultStartYear = 1991

// MinStartYear is the earliest year the daily point API serves.
const MinStartYear = 1981

var validate = validator.New()

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// Request describes one analysis. Zero fields take defaults: Date is today
// (or the date of DayOfYear this year), DayOfYear comes from Date, StartYear is DefaultStartYear and EndYear is
// the current year.
type Request struct {
	Location  string             `json:"location" validate:"required_without=Coords"`
	Coords    *model.Coordinates `json:"coords,omitempty"`
	Variable  string             `json:"variable" validate:"required"`
	Date      time.Time          `json:"date"`
	DayOfYear int                `json:"day_of_year" validate:"min=1,max=366"`
	StartYear int                `json:"start_year" validate:"min=1981"`
	EndYear   int                `json:"end_year" validate:"gtefield=StartYear"`
}

// Bundle is the complete outcome of an analysis, ready for rendering or
// export.
type Bundle struct {
	Location    geocode.Resolution `json:"location"`
	Variable    model.Variable     `json:"variable"`
	Date        string             `json:"date"`
	StartYear   int                `json:"start_year"`
	EndYear     int                `json:"end_year"`
	SeriesSize  int                `json:"series_size"`
	Dropped     int                `json:"dropped"`
	Cached      bool               `json:"cached"`
	FetchedAt   time.Time          `json:"fetched_at"`
	Analysis    analyze.Analysis   `json:"analysis"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// SeriesResult is a normalized series with its provenance.
type SeriesResult struct {
	Request  Request
	Location geocode.Resolution
	Variable model.Variable
	Series   model.Series
	Dropped  int
	Cached   bool
	Fetched  time.Time
}

// Runner wires the collaborators of an analysis.
type Runner struct {
	Geocoder geocode.Geocoder
	Fetcher  dataset.Fetcher
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Metrics  *observability.Metrics // optional
}

// Prepare fills defaults into req and validates it.
func (r *Runner) Prepare(req Request) (Request, error) {
	now := r.clock().Now()
	switch {
	case !req.Date.IsZero():
	case req.DayOfYear >= 1 && req.DayOfYear <= 366:
		req.Date = dateOfYearDay(now.Year(), req.DayOfYear)
	default:
		req.Date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if req.DayOfYear == 0 {
		req.DayOfYear = analyze.DayOfYear(req.Date)
	}
	if req.StartYear == 0 {
		req.StartYear = DefaultStartYear
	}
	if req.EndYear == 0 {
		req.EndYear = now.Year()
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.EndYear > now.Year() {
		return req, fmt.Errorf("%w: end year %d is in the future", ErrInvalidRequest, req.EndYear)
	}
	return req, nil
}

// dateOfYearDay returns the calendar date of doy in year. Day 366 moves back
// to the latest leap year.
func dateOfYearDay(year, doy int) time.Time {
	if doy == 366 {
		for !isLeap(year) {
			year--
		}
	}
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Series resolves the location and returns the normalized series for req.
func (r *Runner) Series(ctx context.Context, req Request) (SeriesResult, error) {
	req, err := r.Prepare(req)
	if err != nil {
		return SeriesResult{}, err
	}
	v, err := power.LookupVariable(req.Variable)
	if err != nil {
		return SeriesResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	loc := r.locate(ctx, req)
	q := dataset.Query{
		Variable:  v.Code,
		Coords:    loc.Place.Coordinates(),
		StartYear: req.StartYear,
		EndYear:   req.EndYear,
	}

	start := r.clock().Now()
	res, err := r.Fetcher.Fetch(ctx, q)
	if err != nil {
		return SeriesResult{}, fmt.Errorf("fetching %s: %w", v.Code, err)
	}
	if r.Metrics != nil {
		source := "power"
		if res.Cached {
			source = "cache"
		}
		r.Metrics.ObserveFetch(source, r.clock().Since(start))
	}

	series, dropped := analyze.Normalize(v.Code, res.Raw)
	if dropped > 0 {
		r.logger().Debug("dropped unparseable or duplicate records", "variable", v.Code, "dropped", dropped)
	}
	return SeriesResult{
		Request:  req,
		Location: loc,
		Variable: v,
		Series:   series,
		Dropped:  dropped,
		Cached:   res.Cached,
		Fetched:  res.FetchedAt,
	}, nil
}

// Run performs the full analysis for req.
func (r *Runner) Run(ctx context.Context, req Request) (Bundle, error) {
	sr, err := r.Series(ctx, req)
	if err != nil {
		r.count(req.Variable, "error")
		return Bundle{}, err
	}
	b := r.Assemble(sr)
	r.count(sr.Variable.Code, string(b.Analysis.Status))
	return b, nil
}

// Assemble runs the pipeline over an already obtained series.
func (r *Runner) Assemble(sr SeriesResult) Bundle {
	return Bundle{
		Location:    sr.Location,
		Variable:    sr.Variable,
		Date:        sr.Request.Date.Format("2006-01-02"),
		StartYear:   sr.Request.StartYear,
		EndYear:     sr.Request.EndYear,
		SeriesSize:  len(sr.Series.Obs),
		Dropped:     sr.Dropped,
		Cached:      sr.Cached,
		FetchedAt:   sr.Fetched,
		Analysis:    analyze.Analyze(sr.Series, sr.Request.DayOfYear),
		GeneratedAt: r.clock().Now().UTC(),
	}
}

func (r *Runner) locate(ctx context.Context, req Request) geocode.Resolution {
	if req.Coords != nil {
		return geocode.Resolution{Place: model.Place{
			Query: req.Location,
			Name:  req.Location,
			Lat:   req.Coords.Lat,
			Lon:   req.Coords.Lon,
		}}
	}
	loc := geocode.Resolve(ctx, r.Geocoder, req.Location, r.logger())
	if loc.Fallback && r.Metrics != nil {
		r.Metrics.GeocodeFallbacks.Inc()
	}
	return loc
}

func (r *Runner) count(variable, outcome string) {
	if r.Metrics != nil {
		r.Metrics.Analyses.WithLabelValues(variable, outcome).Inc()
	}
}

func (r *Runner) clock() clockwork.Clock {
	if r.Clock == nil {
		return clockwork.NewRealClock()
	}
	return r.Clock
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/atmosight/internal/analyze"
	"github.com/derickschaefer/atmosight/internal/dataset"
	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/observability"
	"github.com/derickschaefer/atmosight/internal/service"
)

// --- fakes ---

type stubGeocoder struct {
	place model.Place
	err   error
}

func (g stubGeocoder) Geocode(_ context.Context, _ string) (model.Place, error) {
	return g.place, g.err
}

type stubFetcher struct {
	raw   model.RawSeries
	err   error
	last  dataset.Query
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context, q dataset.Query) (dataset.Result, error) {
	f.calls++
	f.last = q
	if f.err != nil {
		return dataset.Result{}, f.err
	}
	return dataset.Result{Query: q, Raw: f.raw}, nil
}

// jan19 builds a raw series holding January 19 of each year with the given
// values, plus a neighbouring day that must be ignored.
func jan19(startYear int, values ...float64) model.RawSeries {
	raw := model.RawSeries{}
	for i, v := range values {
		y := startYear + i
		raw[fmt.Sprintf("%d0119", y)] = fmt.Sprintf("%g", v)
		raw[fmt.Sprintf("%d0120", y)] = "99"
	}
	return raw
}

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newRunner(g stubGeocoder, f *stubFetcher) (*service.Runner, *observability.Metrics) {
	m := observability.NewMetrics()
	return &service.Runner{
		Geocoder: g,
		Fetcher:  f,
		Clock:    clockwork.NewFakeClockAt(now),
		Metrics:  m,
	}, m
}

// --- Prepare ---

func TestPrepare_Defaults(t *testing.T) {
	r, _ := newRunner(stubGeocoder{}, &stubFetcher{})
	req, err := r.Prepare(service.Request{Location: "Faisalabad", Variable: "T2M"})
	require.NoError(t, err)

	assert.Equal(t, service.DefaultStartYear, req.StartYear)
	assert.Equal(t, 2026, req.EndYear)
	assert.Equal(t, now.YearDay(), req.DayOfYear)
}

func TestPrepare_DayOfYearWithoutDate(t *testing.T) {
	r, _ := newRunner(stubGeocoder{}, &stubFetcher{})
	req, err := r.Prepare(service.Request{Location: "x", Variable: "T2M", DayOfYear: 200})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 19, 0, 0, 0, 0, time.UTC), req.Date)
	assert.Equal(t, 200, req.DayOfYear)

	req, err = r.Prepare(service.Request{Location: "x", Variable: "T2M", DayOfYear: 366})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), req.Date)
}

func TestRun_DayOfYearNamesItsDate(t *testing.T) {
	r, _ := newRunner(stubGeocoder{}, &stubFetcher{raw: jan19(2000, 10, 12)})
	b, err := r.Run(context.Background(), service.Request{
		Location:  "Multan",
		Variable:  "T2M",
		DayOfYear: 19,
		StartYear: 2000,
		EndYear:   2001,
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-01-19", b.Date)
	assert.Len(t, b.Analysis.Sample.Obs, 2)
}

func TestPrepare_Rejects(t *testing.T) {
	r, _ := newRunner(stubGeocoder{}, &stubFetcher{})
	bad := []service.Request{
		{Variable: "T2M"},
		{Location: "x"},
		{Location: "x", Variable: "T2M", StartYear: 1970},
		{Location: "x", Variable: "T2M", StartYear: 2000, EndYear: 1999},
		{Location: "x", Variable: "T2M", EndYear: 2030},
		{Location: "x", Variable: "T2M", DayOfYear: 400},
	}
	for _, req := range bad {
		_, err := r.Prepare(req)
		assert.ErrorIs(t, err, service.ErrInvalidRequest, "%+v", req)
	}
}

func TestPrepare_CoordsReplaceLocation(t *testing.T) {
	r, _ := newRunner(stubGeocoder{}, &stubFetcher{})
	_, err := r.Prepare(service.Request{Variable: "T2M", Coords: &model.Coordinates{Lat: 1, Lon: 2}})
	assert.NoError(t, err)
}

// --- Run ---

func TestRun_FullAnalysis(t *testing.T) {
	f := &stubFetcher{raw: jan19(2000, 10, 12, 14, 16)}
	g := stubGeocoder{place: model.Place{Name: "Faisalabad, Pakistan", Lat: 31.4154, Lon: 73.0897}}
	r, m := newRunner(g, f)

	b, err := r.Run(context.Background(), service.Request{
		Location:  "Faisalabad",
		Variable:  "t2m",
		Date:      time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC),
		StartYear: 2000,
		EndYear:   2003,
	})
	require.NoError(t, err)

	assert.Equal(t, "T2M", f.last.Variable)
	assert.InDelta(t, 31.4154, f.last.Coords.Lat, 1e-9)
	assert.Equal(t, "°C", b.Variable.Unit)
	assert.Equal(t, "2024-01-19", b.Date)
	assert.Equal(t, 19, b.Analysis.DayOfYear)
	assert.Equal(t, 8, b.SeriesSize)
	assert.False(t, b.Location.Fallback)
	assert.Equal(t, now, b.GeneratedAt)

	a := b.Analysis
	require.NotNil(t, a.Stats)
	require.NotNil(t, a.Trend)
	require.NotNil(t, a.Insight)
	assert.Len(t, a.Sample.Obs, 4)
	assert.InDelta(t, 13, a.Stats.Mean, 1e-9)
	assert.Equal(t, analyze.Increasing, a.Trend.Direction)
	assert.Equal(t, analyze.GenerallyStable, a.Insight.Volatility)

	body := scrapeMetrics(t, m)
	assert.Contains(t, body, `atmosight_analyses_total{outcome="ok",variable="T2M"} 1`)
}

func TestRun_GeocodeFailureFallsBack(t *testing.T) {
	f := &stubFetcher{raw: jan19(2000, 1, 2)}
	r, m := newRunner(stubGeocoder{err: errors.New("offline")}, f)

	b, err := r.Run(context.Background(), service.Request{Location: "Nowhere", Variable: "T2M", StartYear: 2000, EndYear: 2001})
	require.NoError(t, err)

	assert.True(t, b.Location.Fallback)
	assert.Equal(t, 24.8607, f.last.Coords.Lat)
	assert.Contains(t, scrapeMetrics(t, m), "atmosight_geocode_fallbacks_total 1")
}

func TestRun_NoDataIsNotAnError(t *testing.T) {
	f := &stubFetcher{raw: model.RawSeries{}}
	r, _ := newRunner(stubGeocoder{place: model.Place{Name: "x", Lat: 1, Lon: 1}}, f)

	b, err := r.Run(context.Background(), service.Request{Location: "x", Variable: "T2M"})
	require.NoError(t, err)
	assert.Equal(t, analyze.StatusNoData, b.Analysis.Status)
	assert.Nil(t, b.Analysis.Stats)
}

func TestRun_FetchErrorPropagates(t *testing.T) {
	f := &stubFetcher{err: errors.New("HTTP 503")}
	r, m := newRunner(stubGeocoder{place: model.Place{Name: "x", Lat: 1, Lon: 1}}, f)

	_, err := r.Run(context.Background(), service.Request{Location: "x", Variable: "T2M"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
	assert.Contains(t, scrapeMetrics(t, m), `outcome="error"`)
}

func TestRun_UnknownVariable(t *testing.T) {
	f := &stubFetcher{}
	r, _ := newRunner(stubGeocoder{}, f)

	_, err := r.Run(context.Background(), service.Request{Location: "x", Variable: "SNOW"})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
	assert.Zero(t, f.calls)
}

func scrapeMetrics(t *testing.T, m *observability.Metrics) string {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var sb strings.Builder
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			var labels []string
			for _, lp := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case metric.GetCounter() != nil:
				fmt.Fprintf(&sb, "%s %g\n", name, metric.GetCounter().GetValue())
			case metric.GetHistogram() != nil:
				fmt.Fprintf(&sb, "%s_count %d\n", name, metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return sb.String()
}

// Package app wires together configuration, the upstream clients, the local
// store and observability into a single Deps struct that commands receive at
// runtime.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/derickschaefer/atmosight/internal/config"
	"github.com/derickschaefer/atmosight/internal/dataset"
	"github.com/derickschaefer/atmosight/internal/geocode"
	"github.com/derickschaefer/atmosight/internal/observability"
	"github.com/derickschaefer/atmosight/internal/power"
	"github.com/derickschaefer/atmosight/internal/service"
	"github.com/derickschaefer/atmosight/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store is nil until RequireStore succeeds.
type Deps struct {
	Config  *config.Config
	Client  *power.Client
	Store   *store.Store
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics

	runner *service.Runner
}

// New builds a Deps from resolved config. Logs go to logOut.
func New(cfg *config.Config, logOut io.Writer) *Deps {
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	logger := observability.NewLogger(logOut, level, cfg.LogFormat)
	return &Deps{
		Config:  cfg,
		Client:  power.NewClient(cfg.PowerURL, cfg.Timeout, cfg.Rate),
		Clock:   clockwork.NewRealClock(),
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}
}

// RequireStore opens the local database if it is not open yet.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	if d.Config.DBPath == "" {
		return errors.New("no database path configured (set db_path or ATMOSIGHT_DB_PATH)")
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	d.Store = s
	return nil
}

// Runner returns the analysis runner. Unless caching is disabled, series and
// geocoding answers go through the local store.
func (d *Deps) Runner() (*service.Runner, error) {
	if d.runner != nil {
		return d.runner, nil
	}

	var fetcher dataset.Fetcher = dataset.Power{Client: d.Client, Now: d.Clock.Now}
	var geocoder geocode.Geocoder = geocode.NewNominatim(d.Config.GeocoderURL, d.Config.Timeout, d.Logger)

	if !d.Config.NoCache {
		if err := d.RequireStore(); err != nil {
			return nil, err
		}
		cached := dataset.NewCached(fetcher, d.Store, dataset.Policy{Refresh: d.Config.Refresh})
		cached.OnLookup = d.Metrics.CacheObserver("series")
		fetcher = cached

		cg := geocode.NewCachedGeocoder(geocoder, d.Store, geocode.Policy{Refresh: d.Config.Refresh})
		cg.OnLookup = d.Metrics.CacheObserver("geocode")
		geocoder = cg
	}

	d.runner = &service.Runner{
		Geocoder: geocoder,
		Fetcher:  fetcher,
		Clock:    d.Clock,
		Logger:   d.Logger,
		Metrics:  d.Metrics,
	}
	return d.runner, nil
}

// Close releases the store if it was opened.
func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}

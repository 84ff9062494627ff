// Package geocode resolves place names to coordinates. Lookups go through a
// Geocoder; Resolve wraps any Geocoder with the fallback coordinate used when
// a place cannot be found.
package geocode

import (
	"context"
	"log/slog"
	"strings"

	"github.com/derickschaefer/atmosight/internal/model"
)

// Geocoder converts a place name to a location. An unknown place returns a
// zero Place and a nil error.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (model.Place, error)
}

// Fallback is the coordinate used when a place cannot be resolved.
var Fallback = model.Coordinates{Lat: 24.8607, Lon: 67.0011}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Place    model.Place `json:"place"`
	Fallback bool        `json:"fallback"`
	Reason   string      `json:"reason,omitempty"`
}

// Found reports whether p carries a geocoder answer.
func Found(p model.Place) bool {
	return p.Name != "" || p.Lat != 0 || p.Lon != 0
}

// Resolve looks up name and never fails: on error or an empty answer it
// returns the Fallback coordinate with Fallback set.
func Resolve(ctx context.Context, g Geocoder, name string, logger *slog.Logger) Resolution {
	name = strings.TrimSpace(name)
	p, err := g.Geocode(ctx, name)
	switch {
	case err != nil:
		logger.Warn("geocoding failed, using fallback coordinates", "location", name, "error", err)
		return fallback(name, err.Error())
	case !Found(p):
		logger.Warn("location not found, using fallback coordinates", "location", name)
		return fallback(name, "not found")
	}
	p.Query = name
	return Resolution{Place: p}
}

func fallback(name, reason string) Resolution {
	return Resolution{
		Place:    model.Place{Query: name, Lat: Fallback.Lat, Lon: Fallback.Lon},
		Fallback: true,
		Reason:   reason,
	}
}

// Key normalises a place name for cache lookups.
func Key(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

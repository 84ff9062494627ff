package geocode

import (
	"context"

	"github.com/derickschaefer/atmosight/internal/model"
)

// Cache persists geocoder answers by normalised name.
type Cache interface {
	GetGeocode(key string) (model.Place, bool, error)
	PutGeocode(key string, p model.Place) error
}

// Policy controls how CachedGeocoder uses its cache.
type Policy struct {
	NoCache bool // bypass the cache entirely
	Refresh bool // skip reads but overwrite with fresh answers
}

// LookupFunc observes cache hits and misses.
type LookupFunc func(hit bool)

// CachedGeocoder wraps a Geocoder with a persistent cache.
type CachedGeocoder struct {
	inner    Geocoder
	cache    Cache
	policy   Policy
	OnLookup LookupFunc
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner Geocoder, cache Cache, policy Policy) *CachedGeocoder {
	return &CachedGeocoder{inner: inner, cache: cache, policy: policy}
}

func (c *CachedGeocoder) Geocode(ctx context.Context, name string) (model.Place, error) {
	if c.policy.NoCache {
		return c.inner.Geocode(ctx, name)
	}
	key := Key(name)
	if !c.policy.Refresh {
		p, ok, err := c.cache.GetGeocode(key)
		if err == nil && ok {
			c.observe(true)
			return p, nil
		}
	}
	c.observe(false)

	p, err := c.inner.Geocode(ctx, name)
	if err != nil {
		return p, err
	}
	// Only cache found places so a transient "not found" can be retried.
	// A failed cache write still returns the answer.
	if Found(p) {
		_ = c.cache.PutGeocode(key, p)
	}
	return p, nil
}

func (c *CachedGeocoder) observe(hit bool) {
	if c.OnLookup != nil {
		c.OnLookup(hit)
	}
}

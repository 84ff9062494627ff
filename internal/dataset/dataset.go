// Package dataset supplies raw daily series to the analysis pipeline. A
// Fetcher retrieves one series; Cached memoizes a Fetcher in the local store
// and FetchMany runs several lookups concurrently.
package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/power"
	"github.com/derickschaefer/atmosight/internal/store"
	"github.com/derickschaefer/atmosight/internal/util"
)

// Query identifies one raw series.
type Query struct {
	Variable  string
	Coords    model.Coordinates
	StartYear int
	EndYear   int
}

// Key is the cache key for q.
func (q Query) Key() string {
	return store.SeriesKey(q.Variable, q.Coords, q.StartYear, q.EndYear)
}

// Result is a fetched series and where it came from.
type Result struct {
	Query     Query
	Raw       model.RawSeries
	Cached    bool
	FetchedAt time.Time
}

// Fetcher retrieves a raw series.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) (Result, error)
}

// ─── Upstream ─────────────────────────────────────────────────────────────────

// Power adapts a NASA POWER client to Fetcher.
type Power struct {
	Client *power.Client
	Now    func() time.Time
}

func (p Power) Fetch(ctx context.Context, q Query) (Result, error) {
	raw, err := p.Client.FetchSeries(ctx, power.Request{
		Lat:       q.Coords.Lat,
		Lon:       q.Coords.Lon,
		StartYear: q.StartYear,
		EndYear:   q.EndYear,
		Variable:  q.Variable,
	})
	if err != nil {
		return Result{}, err
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return Result{Query: q, Raw: raw, FetchedAt: now().UTC()}, nil
}

// ─── Cache ────────────────────────────────────────────────────────────────────

// Cache persists raw series envelopes.
type Cache interface {
	GetSeries(key string) (store.SeriesEntry, bool, error)
	PutSeries(key string, e store.SeriesEntry) error
}

// Policy controls how Cached uses its cache.
type Policy struct {
	NoCache bool // bypass the cache entirely
	Refresh bool // skip reads but overwrite with the fresh series
}

// Cached memoizes an inner Fetcher. It is the only cross-request state in an
// analysis and never decides freshness on its own.
type Cached struct {
	inner    Fetcher
	cache    Cache
	policy   Policy
	OnLookup func(hit bool)
}

// NewCached wraps inner with cache under policy.
func NewCached(inner Fetcher, cache Cache, policy Policy) *Cached {
	return &Cached{inner: inner, cache: cache, policy: policy}
}

func (c *Cached) Fetch(ctx context.Context, q Query) (Result, error) {
	if c.policy.NoCache {
		return c.inner.Fetch(ctx, q)
	}
	key := q.Key()
	if !c.policy.Refresh {
		e, ok, err := c.cache.GetSeries(key)
		if err != nil {
			return Result{}, fmt.Errorf("reading cache: %w", err)
		}
		if ok {
			c.observe(true)
			return Result{Query: q, Raw: e.Raw, Cached: true, FetchedAt: e.FetchedAt}, nil
		}
	}
	c.observe(false)

	res, err := c.inner.Fetch(ctx, q)
	if err != nil {
		return res, err
	}
	err = c.cache.PutSeries(key, store.SeriesEntry{
		Variable:  q.Variable,
		Coords:    q.Coords,
		StartYear: q.StartYear,
		EndYear:   q.EndYear,
		FetchedAt: res.FetchedAt,
		Raw:       res.Raw,
	})
	if err != nil {
		return res, fmt.Errorf("writing cache: %w", err)
	}
	return res, nil
}

func (c *Cached) observe(hit bool) {
	if c.OnLookup != nil {
		c.OnLookup(hit)
	}
}

// ─── Batch ────────────────────────────────────────────────────────────────────

// FetchMany fetches every query with at most limit in flight. Results keep
// query order; a failed query leaves a zero Result and contributes to the
// returned error without stopping the others.
func FetchMany(ctx context.Context, f Fetcher, queries []Query, limit int) ([]Result, error) {
	if limit < 1 {
		limit = 1
	}
	results := make([]Result, len(queries))
	var (
		mu   sync.Mutex
		errs util.MultiError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			res, err := f.Fetch(gctx, q)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				mu.Lock()
				errs.Add(fmt.Errorf("%s: %w", q.Variable, err))
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, errs.Err()
}

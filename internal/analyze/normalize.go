// Package analyze implements the statistical extraction pipeline: series
// normalization, day-of-year selection, descriptive statistics, OLS trend
// estimation and insight classification. All functions are pure; no I/O.
package analyze

import (
	"sort"

	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/util"
)

// ─── Normalizer ───────────────────────────────────────────────────────────────

// Normalize converts a raw date → value mapping into a Series sorted
// ascending by date. Records whose date or value cannot be parsed are dropped
// and counted; explicit missing markers are kept as missing observations.
//
// Raw keys are visited in lexicographic order, and when two keys resolve to
// the same calendar date the first one wins.
func Normalize(variable string, raw model.RawSeries) (model.Series, int) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dropped := 0
	obs := make([]model.Observation, 0, len(keys))
	for _, k := range keys {
		date, err := util.ParseDate(k)
		if err != nil {
			dropped++
			continue
		}
		val, err := util.ParseObsValue(raw[k])
		if err != nil {
			dropped++
			continue
		}
		obs = append(obs, model.Observation{Date: date, Value: val, ValueRaw: raw[k]})
	}

	sorted, dups := NormalizeObservations(obs)
	return model.Series{Variable: variable, Obs: sorted}, dropped + dups
}

// NormalizeObservations returns a copy of obs sorted ascending by date with
// duplicate dates removed (first occurrence wins), and the number removed.
func NormalizeObservations(obs []model.Observation) ([]model.Observation, int) {
	out := make([]model.Observation, len(obs))
	copy(out, obs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	kept := out[:0]
	for _, o := range out {
		if len(kept) > 0 && o.Date.Equal(kept[len(kept)-1].Date) {
			continue
		}
		kept = append(kept, o)
	}
	return kept, len(obs) - len(kept)
}

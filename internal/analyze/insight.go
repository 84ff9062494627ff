package analyze

// ─── Insight Classifier ───────────────────────────────────────────────────────

// VolatilityThreshold is the exceedance frequency above which a day is
// labelled volatile.
const VolatilityThreshold = 0.15

// Insight labels.
const (
	MoreVolatile     = "more volatile"
	GenerallyStable  = "generally stable"
	InsufficientData = "insufficient data"
)

// Insight is the qualitative reading of one day's statistics and trend.
type Insight struct {
	Volatility string `json:"volatility_label"`
	Trend      string `json:"trend_label"`
}

// Classify maps statistics and trend to qualitative labels. Either input
// being nil yields ok=false; callers report InsufficientData in that case.
func Classify(stats *Stats, trend *TrendResult) (Insight, bool) {
	if stats == nil || trend == nil {
		return Insight{Volatility: InsufficientData, Trend: InsufficientData}, false
	}
	return Insight{
		Volatility: VolatilityLabel(stats.Exceedance),
		Trend:      string(trend.Direction),
	}, true
}

// VolatilityLabel labels an exceedance frequency against VolatilityThreshold.
func VolatilityLabel(freq float64) string {
	if freq > VolatilityThreshold {
		return MoreVolatile
	}
	return GenerallyStable
}

package domain

import "time"

// Regime is a discrete classification of current market behavior.
type Regime string

const (
	RegimeTrendingBull   Regime = "TRENDING_BULL"
	RegimeTrendingBear   Regime = "TRENDING_BEAR"
	RegimeChoppyVolatile Regime = "CHOPPY_VOLATILE"
	RegimeChoppyCalm     Regime = "CHOPPY_CALM"
	RegimeUnknown        Regime = "UNKNOWN"
)

// TradableRegimes lists every regime that can carry a policy ranking.
// UNKNOWN is excluded: selection always waits there.
func TradableRegimes() []Regime {
	return []Regime{RegimeTrendingBull, RegimeTrendingBear, RegimeChoppyVolatile, RegimeChoppyCalm}
}

// RegimeAnalysis is the classifier output for one evaluation. Value object,
// created fresh per call and never mutated.
type RegimeAnalysis struct {
	Regime     Regime  `json:"regime"`
	Confidence float64 `json:"confidence"` // 0-100

	// Supporting indicator values.
	ADX            float64 `json:"adx"`
	PlusDI         float64 `json:"plus_di"`
	MinusDI        float64 `json:"minus_di"`
	VolatilityPct  float64 `json:"volatility_pct"`  // ATR as % of last close
	VolatilityRank float64 `json:"volatility_rank"` // percentile vs rolling history, 0-100
	RSI            float64 `json:"rsi"`
	TrendDirection int     `json:"trend_direction"` // -1, 0, 1

	Recommended []string `json:"recommended"`
	Avoid       []string `json:"avoid"`

	ObservedAt time.Time `json:"observed_at"`
}

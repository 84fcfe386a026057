package regime

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/annealtrade/regimebot/internal/domain"
)

// Config holds the classifier thresholds. The defaults are empirically
// chosen constants carried over as-is; override via configuration, do not
// re-derive.
type Config struct {
	Lookback  int // minimum candles required to classify
	ADXPeriod int
	RSIPeriod int
	EMAFast   int
	EMAMedium int
	EMASlow   int

	ADXTrendThreshold      float64 // above this the market counts as trending
	VolPercentileThreshold float64 // above this a choppy market counts as volatile
	VolHistoryCap          int     // rolling ATR% observations kept for the percentile rank
}

func DefaultConfig() Config {
	return Config{
		Lookback:               60,
		ADXPeriod:              14,
		RSIPeriod:              14,
		EMAFast:                20,
		EMAMedium:              50,
		EMASlow:                100,
		ADXTrendThreshold:      25,
		VolPercentileThreshold: 70,
		VolHistoryCap:          500,
	}
}

// Classifier turns a price window into a regime label with a confidence
// score. Its only state is the rolling volatility history backing the
// percentile rank; everything else is pure computation.
type Classifier struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	volHistory []float64
	timeNow    func() time.Time // for testing
}

func NewClassifier(cfg Config, logger *zap.Logger) *Classifier {
	if cfg.Lookback <= 0 {
		cfg = DefaultConfig()
	}
	return &Classifier{
		cfg:     cfg,
		logger:  logger,
		timeNow: time.Now,
	}
}

// Classify evaluates the candle window. Too few candles is not an error:
// the result degrades to UNKNOWN with confidence 0.
func (c *Classifier) Classify(candles []domain.Candle) domain.RegimeAnalysis {
	now := c.timeNow()
	if len(candles) < c.cfg.Lookback {
		return domain.RegimeAnalysis{
			Regime:      domain.RegimeUnknown,
			Confidence:  0,
			Recommended: []string{},
			Avoid:       []string{},
			ObservedAt:  now,
		}
	}

	closes := make([]float64, len(candles))
	for i, cd := range candles {
		closes[i] = cd.Close
	}

	adx, plusDI, minusDI := ADX(candles, c.cfg.ADXPeriod)
	volPct := ATRPercent(candles, c.cfg.ADXPeriod)
	volRank := c.volatilityRank(volPct)
	rsi := RSI(closes, c.cfg.RSIPeriod)
	direction := c.trendDirection(closes)

	regime, confidence := c.classify(adx, plusDI, minusDI, volRank, rsi, direction)
	recommended, avoid := Playbook(regime)

	a := domain.RegimeAnalysis{
		Regime:         regime,
		Confidence:     confidence,
		ADX:            adx,
		PlusDI:         plusDI,
		MinusDI:        minusDI,
		VolatilityPct:  volPct,
		VolatilityRank: volRank,
		RSI:            rsi,
		TrendDirection: direction,
		Recommended:    recommended,
		Avoid:          avoid,
		ObservedAt:     now,
	}

	c.logger.Debug("regime classified",
		zap.String("regime", string(a.Regime)),
		zap.Float64("confidence", a.Confidence),
		zap.Float64("adx", adx),
		zap.Float64("vol_rank", volRank),
		zap.Float64("rsi", rsi),
		zap.Int("direction", direction))
	return a
}

func (c *Classifier) classify(adx, plusDI, minusDI, volRank, rsi float64, direction int) (domain.Regime, float64) {
	const (
		baseConfidence = 30.0
		maxConfidence  = 95.0
		momentumBonus  = 10.0
	)

	var regime domain.Regime
	var confidence float64

	if adx > c.cfg.ADXTrendThreshold {
		bullish := direction >= 0 || plusDI > minusDI
		if bullish {
			regime = domain.RegimeTrendingBull
		} else {
			regime = domain.RegimeTrendingBear
		}

		// Stronger trend means higher confidence.
		confidence = baseConfidence + min((adx-c.cfg.ADXTrendThreshold)*2, 45)

		// Momentum consistency: RSI not contradicting the declared direction.
		if (bullish && rsi >= 50) || (!bullish && rsi <= 50) {
			confidence += momentumBonus
		}
	} else {
		volatile := volRank > c.cfg.VolPercentileThreshold
		if volatile {
			regime = domain.RegimeChoppyVolatile
		} else {
			regime = domain.RegimeChoppyCalm
		}

		// Lower ADX means more convincingly choppy.
		confidence = baseConfidence + min((c.cfg.ADXTrendThreshold-adx)*2, 40)

		// Volatility extremity: rank near either end is unambiguous.
		if (volatile && volRank >= 85) || (!volatile && volRank <= 15) {
			confidence += momentumBonus
		}
	}

	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	return regime, confidence
}

// trendDirection is a majority vote of the latest close against three moving
// averages. The slow span degrades to a simple mean when history is shorter
// than the span.
func (c *Classifier) trendDirection(closes []float64) int {
	last := closes[len(closes)-1]

	averages := []float64{
		EMA(closes, c.cfg.EMAFast),
		EMA(closes, c.cfg.EMAMedium),
	}
	if len(closes) >= c.cfg.EMASlow {
		averages = append(averages, EMA(closes, c.cfg.EMASlow))
	} else {
		averages = append(averages, SMA(closes))
	}

	var votes int
	for _, avg := range averages {
		switch {
		case last > avg:
			votes++
		case last < avg:
			votes--
		}
	}

	switch {
	case votes > 0:
		return 1
	case votes < 0:
		return -1
	default:
		return 0
	}
}

// volatilityRank appends the observation to the rolling history (capped at
// VolHistoryCap) and returns its percentile rank within it, 0-100.
func (c *Classifier) volatilityRank(volPct float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.volHistory = append(c.volHistory, volPct)
	if len(c.volHistory) > c.cfg.VolHistoryCap {
		c.volHistory = c.volHistory[len(c.volHistory)-c.cfg.VolHistoryCap:]
	}

	if len(c.volHistory) < 2 {
		return 50 // no basis for a rank yet
	}

	sorted := make([]float64, len(c.volHistory))
	copy(sorted, c.volHistory)
	sort.Float64s(sorted)

	below := sort.SearchFloat64s(sorted, volPct)
	return float64(below) / float64(len(sorted)-1) * 100
}

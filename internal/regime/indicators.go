package regime

import (
	"math"

	"github.com/annealtrade/regimebot/internal/domain"
)

// SMA is the simple mean of values.
func SMA(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// EMA is an exponential moving average seeded with the first value.
func EMA(values []float64, span int) float64 {
	if len(values) == 0 {
		return 0
	}
	if span < 1 {
		span = 1
	}
	k := 2.0 / (float64(span) + 1)
	ema := values[0]
	for _, v := range values[1:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

// RSI computes a Wilder-smoothed relative strength index over the given
// period. Returns 50 (neutral) when there is not enough history.
func RSI(closes []float64, period int) float64 {
	if period < 1 || len(closes) < period+1 {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		var gain, loss float64
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// trueRange of candle i against the previous close.
func trueRange(cur, prev domain.Candle) float64 {
	tr := cur.High - cur.Low
	if d := math.Abs(cur.High - prev.Close); d > tr {
		tr = d
	}
	if d := math.Abs(cur.Low - prev.Close); d > tr {
		tr = d
	}
	return tr
}

// ATRPercent is the Wilder average true range expressed as a percentage of
// the latest close. Returns 0 when there is not enough history.
func ATRPercent(candles []domain.Candle, period int) float64 {
	if period < 1 || len(candles) < period+1 {
		return 0
	}

	var atr float64
	for i := 1; i <= period; i++ {
		atr += trueRange(candles[i], candles[i-1])
	}
	atr /= float64(period)

	for i := period + 1; i < len(candles); i++ {
		atr = (atr*float64(period-1) + trueRange(candles[i], candles[i-1])) / float64(period)
	}

	last := candles[len(candles)-1].Close
	if last <= 0 {
		return 0
	}
	return atr / last * 100
}

// ADX computes the average directional index and its two directional
// components (+DI, -DI) with Wilder smoothing. Needs at least 2*period
// candles for a meaningful ADX; degrades to zeros otherwise.
func ADX(candles []domain.Candle, period int) (adx, plusDI, minusDI float64) {
	if period < 1 || len(candles) < 2*period+1 {
		return 0, 0, 0
	}

	var smTR, smPlusDM, smMinusDM float64
	var dxValues []float64

	for i := 1; i < len(candles); i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		var plusDM, minusDM float64
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}
		tr := trueRange(candles[i], candles[i-1])

		if i <= period {
			smTR += tr
			smPlusDM += plusDM
			smMinusDM += minusDM
			if i < period {
				continue
			}
		} else {
			smTR = smTR - smTR/float64(period) + tr
			smPlusDM = smPlusDM - smPlusDM/float64(period) + plusDM
			smMinusDM = smMinusDM - smMinusDM/float64(period) + minusDM
		}

		if smTR == 0 {
			dxValues = append(dxValues, 0)
			continue
		}
		pDI := 100 * smPlusDM / smTR
		mDI := 100 * smMinusDM / smTR
		plusDI, minusDI = pDI, mDI

		sum := pDI + mDI
		if sum == 0 {
			dxValues = append(dxValues, 0)
			continue
		}
		dxValues = append(dxValues, 100*math.Abs(pDI-mDI)/sum)
	}

	if len(dxValues) < period {
		return 0, plusDI, minusDI
	}

	adx = SMA(dxValues[:period])
	for _, dx := range dxValues[period:] {
		adx = (adx*float64(period-1) + dx) / float64(period)
	}
	return adx, plusDI, minusDI
}

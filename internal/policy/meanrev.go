package policy

import (
	"github.com/annealtrade/regimebot/internal/domain"
	"github.com/annealtrade/regimebot/internal/regime"
)

// RSIReversal fades oversold extremes and exits once momentum recovers.
type RSIReversal struct {
	period     int
	oversold   float64
	overbought float64
}

func NewRSIReversal() *RSIReversal {
	return &RSIReversal{period: 14, oversold: 30, overbought: 55}
}

func (p *RSIReversal) Name() string { return "rsi_reversal" }

func (p *RSIReversal) EntrySignal(candles []domain.Candle) domain.EntrySignal {
	if len(candles) < p.period+1 {
		return domain.EntrySignal{Action: domain.EntryHold}
	}
	rsi := regime.RSI(closes(candles), p.period)
	if rsi < p.oversold {
		// Deeper oversold, stronger signal.
		return domain.EntrySignal{Action: domain.EntryBuy, Confidence: 50 + (p.oversold - rsi)}
	}
	return domain.EntrySignal{Action: domain.EntryHold}
}

func (p *RSIReversal) ExitSignal(candles []domain.Candle, entryPrice float64) domain.ExitSignal {
	if len(candles) < p.period+1 {
		return domain.ExitSignal{Action: domain.ExitHold}
	}
	if regime.RSI(closes(candles), p.period) > p.overbought {
		return domain.ExitSignal{Action: domain.ExitSell, Reason: "momentum recovered (RSI above exit band)"}
	}
	return domain.ExitSignal{Action: domain.ExitHold}
}

// VWAPMeanRev buys dips below the rolling volume-weighted average price and
// exits on reversion to it.
type VWAPMeanRev struct {
	window   int
	entryGap float64 // fractional discount below VWAP required to enter
}

func NewVWAPMeanRev() *VWAPMeanRev {
	return &VWAPMeanRev{window: 30, entryGap: 0.01}
}

func (p *VWAPMeanRev) Name() string { return "vwap_meanrev" }

func (p *VWAPMeanRev) vwap(candles []domain.Candle) float64 {
	if len(candles) > p.window {
		candles = candles[len(candles)-p.window:]
	}
	var pv, vol float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

func (p *VWAPMeanRev) EntrySignal(candles []domain.Candle) domain.EntrySignal {
	if len(candles) < p.window {
		return domain.EntrySignal{Action: domain.EntryHold}
	}
	vwap := p.vwap(candles)
	last := candles[len(candles)-1].Close
	if vwap > 0 && last < vwap*(1-p.entryGap) {
		gap := (vwap - last) / vwap * 100
		return domain.EntrySignal{Action: domain.EntryBuy, Confidence: 50 + min(gap*10, 40)}
	}
	return domain.EntrySignal{Action: domain.EntryHold}
}

func (p *VWAPMeanRev) ExitSignal(candles []domain.Candle, entryPrice float64) domain.ExitSignal {
	if len(candles) < p.window {
		return domain.ExitSignal{Action: domain.ExitHold}
	}
	if candles[len(candles)-1].Close >= p.vwap(candles) {
		return domain.ExitSignal{Action: domain.ExitSell, Reason: "price reverted to VWAP"}
	}
	return domain.ExitSignal{Action: domain.ExitHold}
}

package policy

import (
	"github.com/annealtrade/regimebot/internal/domain"
	"github.com/annealtrade/regimebot/internal/regime"
)

func closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// EMACrossover goes long while the fast EMA rides above the slow one.
type EMACrossover struct {
	fast, slow int
}

func NewEMACrossover() *EMACrossover {
	return &EMACrossover{fast: 20, slow: 50}
}

func (p *EMACrossover) Name() string { return "ema_crossover" }

func (p *EMACrossover) EntrySignal(candles []domain.Candle) domain.EntrySignal {
	if len(candles) < p.slow {
		return domain.EntrySignal{Action: domain.EntryHold}
	}
	cl := closes(candles)
	fast := regime.EMA(cl, p.fast)
	slow := regime.EMA(cl, p.slow)
	last := cl[len(cl)-1]

	if fast > slow && last > fast {
		spread := (fast - slow) / slow * 100
		return domain.EntrySignal{Action: domain.EntryBuy, Confidence: 50 + min(spread*10, 40)}
	}
	return domain.EntrySignal{Action: domain.EntryHold}
}

func (p *EMACrossover) ExitSignal(candles []domain.Candle, entryPrice float64) domain.ExitSignal {
	if len(candles) < p.slow {
		return domain.ExitSignal{Action: domain.ExitHold}
	}
	cl := closes(candles)
	if regime.EMA(cl, p.fast) < regime.EMA(cl, p.slow) {
		return domain.ExitSignal{Action: domain.ExitSell, Reason: "fast EMA crossed below slow EMA"}
	}
	return domain.ExitSignal{Action: domain.ExitHold}
}

// MomentumRider buys strength: RSI above 60 with the last closes rising.
type MomentumRider struct {
	rsiPeriod int
}

func NewMomentumRider() *MomentumRider {
	return &MomentumRider{rsiPeriod: 14}
}

func (p *MomentumRider) Name() string { return "momentum_rider" }

func (p *MomentumRider) EntrySignal(candles []domain.Candle) domain.EntrySignal {
	if len(candles) < p.rsiPeriod+2 {
		return domain.EntrySignal{Action: domain.EntryHold}
	}
	cl := closes(candles)
	rsi := regime.RSI(cl, p.rsiPeriod)
	rising := cl[len(cl)-1] > cl[len(cl)-2] && cl[len(cl)-2] > cl[len(cl)-3]

	if rsi > 60 && rsi < 85 && rising {
		return domain.EntrySignal{Action: domain.EntryBuy, Confidence: rsi}
	}
	return domain.EntrySignal{Action: domain.EntryHold}
}

func (p *MomentumRider) ExitSignal(candles []domain.Candle, entryPrice float64) domain.ExitSignal {
	if len(candles) < p.rsiPeriod+1 {
		return domain.ExitSignal{Action: domain.ExitHold}
	}
	if regime.RSI(closes(candles), p.rsiPeriod) < 45 {
		return domain.ExitSignal{Action: domain.ExitSell, Reason: "momentum faded (RSI < 45)"}
	}
	return domain.ExitSignal{Action: domain.ExitHold}
}

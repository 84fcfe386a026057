package policy

import "github.com/annealtrade/regimebot/internal/domain"

// BreakoutHunter buys a close above the prior range high and exits when
// price falls back inside the range.
type BreakoutHunter struct {
	entryWindow int // bars defining the breakout range
	exitWindow  int // bars defining the trailing range low
}

func NewBreakoutHunter() *BreakoutHunter {
	return &BreakoutHunter{entryWindow: 20, exitWindow: 10}
}

func (p *BreakoutHunter) Name() string { return "breakout_hunter" }

func (p *BreakoutHunter) EntrySignal(candles []domain.Candle) domain.EntrySignal {
	if len(candles) < p.entryWindow+1 {
		return domain.EntrySignal{Action: domain.EntryHold}
	}
	last := candles[len(candles)-1]
	prior := candles[len(candles)-1-p.entryWindow : len(candles)-1]

	high := prior[0].High
	for _, c := range prior {
		if c.High > high {
			high = c.High
		}
	}
	if last.Close > high {
		margin := (last.Close - high) / high * 100
		return domain.EntrySignal{Action: domain.EntryBuy, Confidence: 55 + min(margin*20, 35)}
	}
	return domain.EntrySignal{Action: domain.EntryHold}
}

func (p *BreakoutHunter) ExitSignal(candles []domain.Candle, entryPrice float64) domain.ExitSignal {
	if len(candles) < p.exitWindow+1 {
		return domain.ExitSignal{Action: domain.ExitHold}
	}
	last := candles[len(candles)-1]
	prior := candles[len(candles)-1-p.exitWindow : len(candles)-1]

	low := prior[0].Low
	for _, c := range prior {
		if c.Low < low {
			low = c.Low
		}
	}
	if last.Close < low {
		return domain.ExitSignal{Action: domain.ExitSell, Reason: "price fell back below trailing range low"}
	}
	return domain.ExitSignal{Action: domain.ExitHold}
}

package ledger

import (
	"math"

	"github.com/annealtrade/regimebot/internal/domain"
)

// Aggregate recomputes the full PolicyPerformance for one (policy, regime)
// pair from all of its stored trades. Deterministic and idempotent: the same
// trade set always produces the same aggregate.
func Aggregate(policy string, regime domain.Regime, trades []*domain.TradeRecord, cfg ScoreConfig) *domain.PolicyPerformance {
	p := &domain.PolicyPerformance{
		Policy: policy,
		Regime: regime,
	}
	if len(trades) == 0 {
		return p
	}

	var grossWin, grossLoss float64
	var cumulative, peak, maxDrawdown float64
	pnls := make([]float64, 0, len(trades))

	for _, t := range trades {
		p.TradeCount++
		p.TotalPnL += t.PnL
		pnls = append(pnls, t.PnL)

		if t.PnL > 0 {
			p.WinCount++
			grossWin += t.PnL
		} else {
			p.LossCount++
			grossLoss += -t.PnL
		}

		cumulative += t.PnL
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}

	n := float64(p.TradeCount)
	p.WinRate = float64(p.WinCount) / n
	p.AvgPnL = p.TotalPnL / n
	p.MaxDrawdown = maxDrawdown

	var avgWin, avgLoss float64
	if p.WinCount > 0 {
		avgWin = grossWin / float64(p.WinCount)
	}
	if p.LossCount > 0 {
		avgLoss = -grossLoss / float64(p.LossCount)
	}
	p.Expectancy = p.WinRate*avgWin + (1-p.WinRate)*avgLoss

	p.Sharpe = sharpeRatio(pnls)

	if grossLoss > 0 {
		p.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		p.ProfitFactor = grossWin // no losses yet; clamped inside the score anyway
	}

	p.Score = CompositeScore(p, cfg)
	return p
}

// CompositeScore maps an aggregate to the 0-100 ranking number:
//
//	0.30*clamp(expectancy*100) + 0.25*clamp(sharpe*20) + 0.20*winRate*100
//	  + 0.15*clamp(profitFactor*25) + 0.10*min(tradeCount*2, 100)
//
// with every term clamped into [0, 100] before weighting.
func CompositeScore(p *domain.PolicyPerformance, cfg ScoreConfig) float64 {
	score := cfg.WeightExpectancy*clamp(p.Expectancy*100) +
		cfg.WeightSharpe*clamp(p.Sharpe*20) +
		cfg.WeightWinRate*(p.WinRate*100) +
		cfg.WeightProfitFactor*clamp(p.ProfitFactor*25) +
		cfg.WeightSampleSize*clamp(float64(p.TradeCount)*2)
	return clamp(score)
}

// sharpeRatio is the simplified ratio mean/stddev of per-trade P&L, using
// the population deviation. Zero when the deviation is zero.
func sharpeRatio(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}
	var mean float64
	for _, v := range pnls {
		mean += v
	}
	mean /= float64(len(pnls))

	var variance float64
	for _, v := range pnls {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(pnls))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

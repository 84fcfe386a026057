package selector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/annealtrade/regimebot/internal/domain"
	"github.com/annealtrade/regimebot/internal/regime"
)

// Ranker is the slice of the ledger the selector reads.
type Ranker interface {
	GetTopPolicies(ctx context.Context, regime domain.Regime, limit, minTrades int) ([]*domain.PolicyPerformance, error)
}

type Config struct {
	// MinTrades a policy needs before its history counts as validated.
	MinTrades int
	// MaxMultiplier caps the position-size multiplier.
	MaxMultiplier float64
	// ExplorationConfidence and ExplorationMultiplier apply in cold-start
	// fallback mode.
	ExplorationConfidence float64
	ExplorationMultiplier float64
}

func DefaultConfig() Config {
	return Config{
		MinTrades:             5,
		MaxMultiplier:         1.5,
		ExplorationConfidence: 50,
		ExplorationMultiplier: 0.5,
	}
}

// Selector picks the action for the current regime: a ranked policy when
// validated history exists (exploitation), the regime playbook when it does
// not (exploration), or WAIT when risk state forbids trading.
type Selector struct {
	ranker Ranker
	cfg    Config
	logger *zap.Logger
}

func New(ranker Ranker, cfg Config, logger *zap.Logger) *Selector {
	if cfg.MinTrades <= 0 {
		cfg = DefaultConfig()
	}
	return &Selector{ranker: ranker, cfg: cfg, logger: logger}
}

// Select never returns a tradable recommendation while the daily loss limit
// is breached or the concurrency cap is full, regardless of history.
func (s *Selector) Select(ctx context.Context, analysis domain.RegimeAnalysis, risk domain.RiskSnapshot, openPositions, maxPositions int) domain.Recommendation {
	if risk.DailyLossReached {
		return wait("HIGH", fmt.Sprintf("daily loss limit reached (%.2f of %.2f)", risk.DailyPnL, -risk.DailyLossLimit))
	}
	if maxPositions > 0 && openPositions >= maxPositions {
		return wait("MEDIUM", fmt.Sprintf("position cap reached (%d/%d)", openPositions, maxPositions))
	}
	if analysis.Regime == domain.RegimeUnknown {
		return wait("MEDIUM", "regime unknown, not enough market data")
	}

	top, err := s.ranker.GetTopPolicies(ctx, analysis.Regime, 3, s.cfg.MinTrades)
	if err != nil {
		// Ledger unavailable: degrade to the playbook rather than stall.
		s.logger.Warn("ranking query failed, falling back to playbook", zap.Error(err))
		top = nil
	}

	if len(top) > 0 {
		return s.exploit(analysis, top[0])
	}
	return s.explore(analysis)
}

func (s *Selector) exploit(analysis domain.RegimeAnalysis, best *domain.PolicyPerformance) domain.Recommendation {
	confidence := clamp(0.6*best.Score+0.4*best.WinRate*100, 0, 95)

	multiplier := 0.5 + best.Score/100
	if multiplier > s.cfg.MaxMultiplier {
		multiplier = s.cfg.MaxMultiplier
	}

	riskLevel := "HIGH"
	switch {
	case best.Score >= 60 && best.WinRate >= 0.55:
		riskLevel = "LOW"
	case best.Score >= 40:
		riskLevel = "MEDIUM"
	}

	return domain.Recommendation{
		Policy:          best.Policy,
		Confidence:      confidence,
		ExpectedWinRate: best.WinRate,
		SizeMultiplier:  multiplier,
		RiskLevel:       riskLevel,
		Source:          domain.SourceHistory,
		Reasoning: fmt.Sprintf("ranked #1 for %s by historical composite score %.1f over %d trades (win rate %.0f%%)",
			analysis.Regime, best.Score, best.TradeCount, best.WinRate*100),
	}
}

func (s *Selector) explore(analysis domain.RegimeAnalysis) domain.Recommendation {
	candidates := analysis.Recommended
	if len(candidates) == 0 {
		return wait("MEDIUM", fmt.Sprintf("no playbook policies for regime %s", analysis.Regime))
	}

	multiplier := s.cfg.ExplorationMultiplier * regime.ExplorationMultiplier(analysis.Regime)
	if multiplier <= 0 {
		multiplier = s.cfg.ExplorationMultiplier
	}

	return domain.Recommendation{
		Policy:          candidates[0],
		Confidence:      s.cfg.ExplorationConfidence,
		ExpectedWinRate: 0.5,
		SizeMultiplier:  multiplier,
		RiskLevel:       "MEDIUM",
		Source:          domain.SourceFallback,
		Reasoning: fmt.Sprintf("no validated history for %s (min %d trades), exploring playbook policy %q at reduced size",
			analysis.Regime, s.cfg.MinTrades, candidates[0]),
	}
}

func wait(riskLevel, reason string) domain.Recommendation {
	return domain.Recommendation{
		Policy:         domain.PolicyWait,
		Confidence:     0,
		SizeMultiplier: 0,
		RiskLevel:      riskLevel,
		Source:         domain.SourceNone,
		Reasoning:      reason,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/annealtrade/regimebot/internal/domain"
)

// ScoreConfig carries the composite-score weights. The defaults must be
// reproduced exactly for numeric parity with historical rankings; they are
// injectable but not re-derived.
type ScoreConfig struct {
	WeightExpectancy   float64
	WeightSharpe       float64
	WeightWinRate      float64
	WeightProfitFactor float64
	WeightSampleSize   float64

	// MinTrades is the default minimum sample size for ranking queries.
	MinTrades int
}

func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		WeightExpectancy:   0.30,
		WeightSharpe:       0.25,
		WeightWinRate:      0.20,
		WeightProfitFactor: 0.15,
		WeightSampleSize:   0.10,
		MinTrades:          5,
	}
}

// Ledger is the persistent record of realized trade outcomes, aggregated
// per (policy, regime) pair. LogTrade is the single serialization point for
// aggregate correctness: the mutex makes insert + recompute + upsert atomic
// with respect to other writers.
type Ledger struct {
	store  domain.TradeStore
	cfg    ScoreConfig
	logger *zap.Logger
	mu     sync.Mutex
}

func New(store domain.TradeStore, cfg ScoreConfig, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// LogTrade persists one closed trade and recomputes the (policy, regime)
// aggregate in full. A duplicate trade_id returns ErrDuplicateTrade and
// leaves the aggregates untouched. I/O failures come back wrapped in a
// StorageError; the caller is expected to retry.
func (l *Ledger) LogTrade(ctx context.Context, t domain.TradeRecord) error {
	if t.TradeID == "" {
		return fmt.Errorf("trade record without trade_id (%s/%s)", t.Policy, t.Regime)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.InsertTrade(ctx, &t); err != nil {
		if errors.Is(err, domain.ErrDuplicateTrade) {
			l.logger.Warn("duplicate trade rejected",
				zap.String("trade_id", t.TradeID),
				zap.String("policy", t.Policy))
			return domain.ErrDuplicateTrade
		}
		return &domain.StorageError{Op: "insert trade", Err: err}
	}

	trades, err := l.store.TradesForPair(ctx, t.Policy, t.Regime)
	if err != nil {
		return &domain.StorageError{Op: "load pair trades", Err: err}
	}

	perf := Aggregate(t.Policy, t.Regime, trades, l.cfg)
	perf.UpdatedAt = t.ExitTime
	if err := l.store.UpsertPerformance(ctx, perf); err != nil {
		return &domain.StorageError{Op: "upsert performance", Err: err}
	}

	l.logger.Info("trade logged",
		zap.String("trade_id", t.TradeID),
		zap.String("policy", t.Policy),
		zap.String("regime", string(t.Regime)),
		zap.Float64("pnl", t.PnL),
		zap.String("exit_reason", string(t.ExitReason)),
		zap.Float64("score", perf.Score),
		zap.Int("trades", perf.TradeCount))
	return nil
}

// GetPerformance returns the aggregate for one pair. The bool is false when
// the pair has no recorded trades.
func (l *Ledger) GetPerformance(ctx context.Context, policy string, regime domain.Regime) (*domain.PolicyPerformance, bool, error) {
	p, err := l.store.GetPerformance(ctx, policy, regime)
	if err != nil {
		return nil, false, &domain.StorageError{Op: "get performance", Err: err}
	}
	if p == nil {
		return nil, false, nil
	}
	return p, true, nil
}

// GetTopPolicies returns the policies for a regime that meet the minimum
// trade count, ordered by composite score descending with ties broken by
// trade count descending.
func (l *Ledger) GetTopPolicies(ctx context.Context, regime domain.Regime, limit, minTrades int) ([]*domain.PolicyPerformance, error) {
	if minTrades <= 0 {
		minTrades = l.cfg.MinTrades
	}
	top, err := l.store.TopPerformance(ctx, regime, limit, minTrades)
	if err != nil {
		return nil, &domain.StorageError{Op: "top performance", Err: err}
	}
	return top, nil
}

// RecordRegime appends one classification to the regime_history audit log.
func (l *Ledger) RecordRegime(ctx context.Context, symbol string, a domain.RegimeAnalysis) error {
	if err := l.store.InsertRegimeObservation(ctx, symbol, a); err != nil {
		return &domain.StorageError{Op: "insert regime observation", Err: err}
	}
	return nil
}

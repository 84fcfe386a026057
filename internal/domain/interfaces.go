package domain

import (
	"context"
	"time"
)

// PriceSource provides market data from the exchange. Bars come back in
// ascending timestamp order; fewer than limit bars is legal (early data
// availability), not an error.
type PriceSource interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// TradeStore is the persistence surface of the performance ledger:
// raw trades keyed by trade_id, aggregates keyed by (policy, regime), and
// an append-only regime observation log.
type TradeStore interface {
	InsertTrade(ctx context.Context, t *TradeRecord) error
	TradeExists(ctx context.Context, tradeID string) (bool, error)
	TradesForPair(ctx context.Context, policy string, regime Regime) ([]*TradeRecord, error)

	UpsertPerformance(ctx context.Context, p *PolicyPerformance) error
	// GetPerformance returns (nil, nil) when the pair has no trades yet.
	GetPerformance(ctx context.Context, policy string, regime Regime) (*PolicyPerformance, error)
	TopPerformance(ctx context.Context, regime Regime, limit, minTrades int) ([]*PolicyPerformance, error)

	InsertRegimeObservation(ctx context.Context, symbol string, a RegimeAnalysis) error
	RecentRegimeObservations(ctx context.Context, limit int) ([]*RegimeObservation, error)
}

// RegimeObservation is one row of the regime_history audit log.
type RegimeObservation struct {
	ID             int64     `db:"id"`
	Symbol         string    `db:"symbol"`
	Regime         Regime    `db:"regime"`
	Confidence     float64   `db:"confidence"`
	ADX            float64   `db:"adx"`
	VolatilityRank float64   `db:"volatility_rank"`
	RSI            float64   `db:"rsi"`
	TrendDirection int       `db:"trend_direction"`
	ObservedAt     time.Time `db:"observed_at"`
}

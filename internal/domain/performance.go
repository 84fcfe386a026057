package domain

import "time"

// PolicyPerformance is the aggregated outcome statistics for one
// (policy, regime) pair. Recomputed in full from the stored trades every
// time a new trade for the pair is logged.
type PolicyPerformance struct {
	Policy       string  `json:"policy" db:"policy"`
	Regime       Regime  `json:"regime" db:"regime"`
	TradeCount   int     `json:"trade_count" db:"trade_count"`
	WinCount     int     `json:"win_count" db:"win_count"`
	LossCount    int     `json:"loss_count" db:"loss_count"`
	WinRate      float64 `json:"win_rate" db:"win_rate"` // 0..1
	TotalPnL     float64 `json:"total_pnl" db:"total_pnl"`
	AvgPnL       float64 `json:"avg_pnl" db:"avg_pnl"`
	Expectancy   float64 `json:"expectancy" db:"expectancy"`
	Sharpe       float64 `json:"sharpe" db:"sharpe"`
	MaxDrawdown  float64 `json:"max_drawdown" db:"max_drawdown"`   // peak-to-trough of cumulative P&L, >= 0
	ProfitFactor float64 `json:"profit_factor" db:"profit_factor"` // gross wins / gross losses

	// Score is the 0-100 composite ranking number.
	Score float64 `json:"score" db:"score"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

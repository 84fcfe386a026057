package domain

import "time"

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitTakeProfit   ExitReason = "TAKE_PROFIT"
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitPolicySignal ExitReason = "SIGNAL_EXIT"
	ExitTimeout      ExitReason = "TIMEOUT"
	ExitManual       ExitReason = "MANUAL"
)

// TradeRecord is one closed trade. Written exactly once to the ledger;
// duplicate TradeIDs are rejected, not overwritten.
type TradeRecord struct {
	TradeID    string     `json:"trade_id" db:"trade_id"`
	Policy     string     `json:"policy" db:"policy"`
	Regime     Regime     `json:"regime" db:"regime"`
	Symbol     string     `json:"symbol" db:"symbol"`
	Side       Side       `json:"side" db:"side"`
	EntryPrice float64    `json:"entry_price" db:"entry_price"`
	ExitPrice  float64    `json:"exit_price" db:"exit_price"`
	Size       float64    `json:"size" db:"size"` // notional in quote currency
	EntryTime  time.Time  `json:"entry_time" db:"entry_time"`
	ExitTime   time.Time  `json:"exit_time" db:"exit_time"`
	PnL        float64    `json:"pnl" db:"pnl"`
	PnLPct     float64    `json:"pnl_pct" db:"pnl_pct"`
	ExitReason ExitReason `json:"exit_reason" db:"exit_reason"`
	Fees       float64    `json:"fees" db:"fees"`
}

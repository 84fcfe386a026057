package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Sign is +1 for longs and -1 for shorts, used in P&L arithmetic.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

type PositionStatus string

const (
	StatusOpen    PositionStatus = "OPEN"
	StatusClosing PositionStatus = "CLOSING"
	StatusClosed  PositionStatus = "CLOSED"
)

// Position is an open trade in flight. Owned exclusively by the lifecycle
// manager; status only ever moves OPEN -> CLOSING -> CLOSED.
type Position struct {
	ID         string
	Policy     string
	Symbol     string
	Side       Side
	EntryPrice float64
	EntryTime  time.Time
	Notional   float64 // position size in quote currency
	StopLoss   float64
	TakeProfit float64
	Regime     Regime // regime at entry
	Status     PositionStatus

	// Mark-to-market, refreshed from the live price stream.
	MarkPrice     float64
	UnrealizedPnL float64
}

// MarkToMarket updates the unrealized P&L against the given price.
func (p *Position) MarkToMarket(price float64) {
	if p.EntryPrice <= 0 {
		return
	}
	p.MarkPrice = price
	p.UnrealizedPnL = (price - p.EntryPrice) / p.EntryPrice * p.Side.Sign() * p.Notional
}

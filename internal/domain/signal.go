package domain

type EntryAction string

const (
	EntryBuy  EntryAction = "BUY"
	EntryHold EntryAction = "HOLD"
)

// EntrySignal is the output of a policy's entry function. The engine owns
// all risk and sizing decisions; confidence is advisory.
type EntrySignal struct {
	Action     EntryAction `json:"action"`
	Confidence float64     `json:"confidence"` // 0-100
}

type ExitAction string

const (
	ExitSell ExitAction = "SELL"
	ExitHold ExitAction = "HOLD"
)

// ExitSignal is the output of a policy's exit function.
type ExitSignal struct {
	Action ExitAction `json:"action"`
	Reason string     `json:"reason"`
}

package domain

// Candle is one OHLCV sample. Series are ordered by Time ascending with no
// duplicate timestamps.
type Candle struct {
	Time   int64   `json:"time"` // unix milliseconds
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

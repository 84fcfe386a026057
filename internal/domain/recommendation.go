package domain

// PolicyWait is the recommendation returned when no trade should be taken.
const PolicyWait = "WAIT"

// RecommendationSource distinguishes exploitation (ranked history) from
// exploration (static playbook fallback).
type RecommendationSource string

const (
	SourceHistory  RecommendationSource = "HISTORY"
	SourceFallback RecommendationSource = "FALLBACK"
	SourceNone     RecommendationSource = "NONE"
)

// Recommendation is the policy selector output for one cycle.
type Recommendation struct {
	Policy          string               `json:"policy"` // policy name or PolicyWait
	Confidence      float64              `json:"confidence"`
	ExpectedWinRate float64              `json:"expected_win_rate"`
	SizeMultiplier  float64              `json:"size_multiplier"`
	RiskLevel       string               `json:"risk_level"` // LOW, MEDIUM, HIGH
	Source          RecommendationSource `json:"source"`
	Reasoning       string               `json:"reasoning"`
}

// IsWait reports whether the recommendation is non-tradable.
func (r Recommendation) IsWait() bool {
	return r.Policy == PolicyWait || r.Policy == ""
}

// RiskSnapshot is the live risk state supplied to the selector each cycle.
type RiskSnapshot struct {
	DailyPnL         float64 `json:"daily_pnl"`
	DailyLossLimit   float64 `json:"daily_loss_limit"`
	DailyLossReached bool    `json:"daily_loss_reached"`
	OpenPositions    int     `json:"open_positions"`
	MaxPositions     int     `json:"max_positions"`
}

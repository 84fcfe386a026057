package regime

import "github.com/annealtrade/regimebot/internal/domain"

// The playbook maps each regime to the policies that historically suit it
// and the ones to keep away from. This is configuration data, not derived:
// it seeds selection until the ledger has enough samples to rank instead.
type playbookEntry struct {
	recommended []string
	avoid       []string
	multiplier  float64 // base size multiplier in exploration mode
}

var playbook = map[domain.Regime]playbookEntry{
	domain.RegimeTrendingBull: {
		recommended: []string{"ema_crossover", "momentum_rider", "breakout_hunter"},
		avoid:       []string{"rsi_reversal", "vwap_meanrev"},
		multiplier:  1.0,
	},
	domain.RegimeTrendingBear: {
		// Long-only engine: in a downtrend only fade deep oversold, small.
		recommended: []string{"rsi_reversal", "vwap_meanrev"},
		avoid:       []string{"momentum_rider", "breakout_hunter", "ema_crossover"},
		multiplier:  0.5,
	},
	domain.RegimeChoppyVolatile: {
		recommended: []string{"breakout_hunter", "rsi_reversal"},
		avoid:       []string{"ema_crossover", "momentum_rider"},
		multiplier:  0.6,
	},
	domain.RegimeChoppyCalm: {
		recommended: []string{"vwap_meanrev", "rsi_reversal"},
		avoid:       []string{"breakout_hunter", "momentum_rider"},
		multiplier:  0.8,
	},
}

// Playbook returns the static recommended and avoid policy lists for a
// regime. Both are empty for UNKNOWN.
func Playbook(r domain.Regime) (recommended, avoid []string) {
	e, ok := playbook[r]
	if !ok {
		return nil, nil
	}
	rec := make([]string, len(e.recommended))
	copy(rec, e.recommended)
	av := make([]string, len(e.avoid))
	copy(av, e.avoid)
	return rec, av
}

// ExplorationMultiplier is the base position-size multiplier applied when
// trading a regime without validated history.
func ExplorationMultiplier(r domain.Regime) float64 {
	e, ok := playbook[r]
	if !ok {
		return 0
	}
	return e.multiplier
}

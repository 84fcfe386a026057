package policy_test

import (
	"reflect"
	"testing"

	"github.com/annealtrade/regimebot/internal/domain"
	"github.com/annealtrade/regimebot/internal/policy"
)

func series(closes ...float64) []domain.Candle {
	candles := make([]domain.Candle, len(closes))
	for i, c := range closes {
		candles[i] = domain.Candle{
			Time:   int64(i) * 60_000,
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 10,
		}
	}
	return candles
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestDefaultRegistry(t *testing.T) {
	r := policy.DefaultRegistry()

	want := []string{"breakout_hunter", "ema_crossover", "momentum_rider", "rsi_reversal", "vwap_meanrev"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}

	p, ok := r.Get("ema_crossover")
	if !ok || p.Name() != "ema_crossover" {
		t.Errorf("Get(ema_crossover) = %v, %v", p, ok)
	}
	if _, ok := r.Get("nonexistent"); ok {
		t.Error("Get(nonexistent) should report missing")
	}
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := policy.NewRegistry()
	if err := r.Register(policy.NewEMACrossover()); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(policy.NewEMACrossover()); err == nil {
		t.Fatal("second Register with same name should fail")
	}
}

func TestEMACrossoverSignals(t *testing.T) {
	p := policy.NewEMACrossover()

	up := series(ramp(60, 100, 1)...)
	if sig := p.EntrySignal(up); sig.Action != domain.EntryBuy {
		t.Errorf("uptrend entry = %s, want BUY", sig.Action)
	}
	if sig := p.ExitSignal(up, 100); sig.Action != domain.ExitHold {
		t.Errorf("uptrend exit = %s, want HOLD", sig.Action)
	}

	down := series(ramp(60, 200, -1)...)
	if sig := p.EntrySignal(down); sig.Action != domain.EntryHold {
		t.Errorf("downtrend entry = %s, want HOLD", sig.Action)
	}
	if sig := p.ExitSignal(down, 180); sig.Action != domain.ExitSell {
		t.Errorf("downtrend exit = %s, want SELL", sig.Action)
	}

	if sig := p.EntrySignal(series(100, 101)); sig.Action != domain.EntryHold {
		t.Errorf("short input entry = %s, want HOLD", sig.Action)
	}
}

func TestMomentumRiderSignals(t *testing.T) {
	p := policy.NewMomentumRider()

	// Two gains for every small loss keeps RSI in the entry band, and the
	// series ends on two rising closes.
	closes := make([]float64, 31)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%3 == 1 {
			closes[i] = closes[i-1] - 0.5
		} else {
			closes[i] = closes[i-1] + 1.0
		}
	}
	if sig := p.EntrySignal(series(closes...)); sig.Action != domain.EntryBuy {
		t.Errorf("steady momentum entry = %s, want BUY", sig.Action)
	}

	// A straight ramp pins RSI at 100, past the overheat cutoff.
	if sig := p.EntrySignal(series(ramp(31, 100, 1)...)); sig.Action != domain.EntryHold {
		t.Errorf("overheated entry = %s, want HOLD", sig.Action)
	}

	down := series(ramp(31, 200, -1)...)
	if sig := p.ExitSignal(down, 190); sig.Action != domain.ExitSell {
		t.Errorf("fading momentum exit = %s, want SELL", sig.Action)
	}
}

func TestRSIReversalSignals(t *testing.T) {
	p := policy.NewRSIReversal()

	down := series(ramp(30, 200, -1)...)
	sig := p.EntrySignal(down)
	if sig.Action != domain.EntryBuy {
		t.Fatalf("oversold entry = %s, want BUY", sig.Action)
	}
	if sig.Confidence <= 50 {
		t.Errorf("oversold confidence = %f, want > 50", sig.Confidence)
	}

	// Sell once a sharp recovery lifts RSI back over the exit band.
	closes := ramp(30, 200, -1)
	last := closes[len(closes)-1]
	for i := 1; i <= 10; i++ {
		closes = append(closes, last+float64(i)*2)
	}
	if sig := p.ExitSignal(series(closes...), 175); sig.Action != domain.ExitSell {
		t.Errorf("recovered exit = %s, want SELL", sig.Action)
	}

	flat := series(ramp(30, 100, 0)...)
	if sig := p.EntrySignal(flat); sig.Action != domain.EntryHold {
		t.Errorf("flat entry = %s, want HOLD", sig.Action)
	}
}

func TestVWAPMeanRevSignals(t *testing.T) {
	p := policy.NewVWAPMeanRev()

	closes := ramp(30, 100, 0)
	closes[len(closes)-1] = 95 // 5% below the rolling VWAP
	if sig := p.EntrySignal(series(closes...)); sig.Action != domain.EntryBuy {
		t.Errorf("discounted entry = %s, want BUY", sig.Action)
	}

	flat := series(ramp(30, 100, 0)...)
	if sig := p.EntrySignal(flat); sig.Action != domain.EntryHold {
		t.Errorf("at-VWAP entry = %s, want HOLD", sig.Action)
	}
	if sig := p.ExitSignal(flat, 95); sig.Action != domain.ExitSell {
		t.Errorf("reverted exit = %s, want SELL", sig.Action)
	}
}

func TestBreakoutHunterSignals(t *testing.T) {
	p := policy.NewBreakoutHunter()

	closes := ramp(21, 100, 0)
	closes[len(closes)-1] = 102 // clears the 100.5 range high
	if sig := p.EntrySignal(series(closes...)); sig.Action != domain.EntryBuy {
		t.Errorf("breakout entry = %s, want BUY", sig.Action)
	}

	inRange := series(ramp(21, 100, 0)...)
	if sig := p.EntrySignal(inRange); sig.Action != domain.EntryHold {
		t.Errorf("in-range entry = %s, want HOLD", sig.Action)
	}

	closes = ramp(11, 100, 0)
	closes[len(closes)-1] = 99 // under the 99.5 trailing low
	if sig := p.ExitSignal(series(closes...), 100); sig.Action != domain.ExitSell {
		t.Errorf("breakdown exit = %s, want SELL", sig.Action)
	}
	if sig := p.ExitSignal(inRange, 100); sig.Action != domain.ExitHold {
		t.Errorf("in-range exit = %s, want HOLD", sig.Action)
	}
}

package tests

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/annealtrade/regimebot/internal/domain"
	"github.com/annealtrade/regimebot/internal/infrastructure/storage"
	"github.com/annealtrade/regimebot/internal/ledger"
	"github.com/annealtrade/regimebot/internal/orchestrator"
	"github.com/annealtrade/regimebot/internal/policy"
	"github.com/annealtrade/regimebot/internal/regime"
	"github.com/annealtrade/regimebot/internal/risk"
	"github.com/annealtrade/regimebot/internal/selector"
)

type scriptedSource struct {
	candles []domain.Candle
}

func (s *scriptedSource) GetCandles(_ context.Context, _, _ string, _ int) ([]domain.Candle, error) {
	return s.candles, nil
}

func (s *scriptedSource) GetCurrentPrice(_ context.Context, _ string) (float64, error) {
	return s.candles[len(s.candles)-1].Close, nil
}

func trendBars(n int) []domain.Candle {
	candles := make([]domain.Candle, n)
	for i := 0; i < n; i++ {
		close := 100.0 + float64(i)
		candles[i] = domain.Candle{
			Time:   int64(i) * 300_000,
			Open:   close - 1,
			High:   close + 0.3,
			Low:    close - 0.3,
			Close:  close,
			Volume: 10,
		}
	}
	return candles
}

func crashedBars(candles []domain.Candle, close float64) []domain.Candle {
	out := make([]domain.Candle, len(candles))
	copy(out, candles)
	last := out[len(out)-1]
	last.Close = close
	last.High = close + 0.3
	last.Low = close - 0.3
	out[len(out)-1] = last
	return out
}

// TestFullLoopAgainstSQLite drives real components end to end: classify a
// trending market, open a position from the playbook fallback, stop out on
// a crash and verify the trade landed in the database with its aggregate.
func TestFullLoopAgainstSQLite(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "e2e.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	classifier := regime.NewClassifier(regime.DefaultConfig(), logger)
	ldg := ledger.New(store, ledger.DefaultScoreConfig(), logger)
	sel := selector.New(ldg, selector.DefaultConfig(), logger)
	registry := policy.DefaultRegistry()
	tracker := risk.NewTracker(300, logger)

	cfg := orchestrator.DefaultConfig()
	cfg.Symbol = "BTCUSDT"
	cfg.Capital = 10_000
	cfg.MinNotional = 1

	source := &scriptedSource{candles: trendBars(150)}
	orch := orchestrator.New(cfg, source, classifier, ldg, sel, registry, tracker, logger)

	// Trending market: the classifier reports a bull regime, no history
	// exists yet, and the fallback policy's own entry signal fires.
	if err := orch.Cycle(ctx); err != nil {
		t.Fatalf("entry cycle: %v", err)
	}
	if orch.OpenPositionCount() != 1 {
		t.Fatalf("open positions = %d, want 1", orch.OpenPositionCount())
	}
	var pos domain.Position
	for _, p := range orch.Snapshot().Positions {
		pos = *p
	}
	if pos.Policy != "ema_crossover" {
		t.Fatalf("opened policy = %s, want playbook leader ema_crossover", pos.Policy)
	}
	if pos.Regime != domain.RegimeTrendingBull {
		t.Fatalf("entry regime = %s, want TRENDING_BULL", pos.Regime)
	}

	// Crash through the stop.
	source.candles = crashedBars(source.candles, pos.EntryPrice*0.8)
	if err := orch.Cycle(ctx); err != nil {
		t.Fatalf("exit cycle: %v", err)
	}
	if orch.OpenPositionCount() != 0 {
		t.Fatalf("open positions after crash = %d, want 0", orch.OpenPositionCount())
	}

	// The trade is durable and aggregated.
	trades, err := store.TradesForPair(ctx, "ema_crossover", domain.RegimeTrendingBull)
	if err != nil {
		t.Fatalf("TradesForPair: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("stored trades = %d, want 1", len(trades))
	}
	if trades[0].ExitReason != domain.ExitStopLoss {
		t.Errorf("exit reason = %s, want STOP_LOSS", trades[0].ExitReason)
	}
	if trades[0].PnL >= 0 {
		t.Errorf("pnl = %f, want negative", trades[0].PnL)
	}

	perf, err := store.GetPerformance(ctx, "ema_crossover", domain.RegimeTrendingBull)
	if err != nil || perf == nil {
		t.Fatalf("GetPerformance = %+v, %v", perf, err)
	}
	if perf.TradeCount != 1 || perf.WinRate != 0 {
		t.Errorf("aggregate = %+v", perf)
	}

	// One trade is visible when the bar is lowered but does not qualify as
	// validated history for selection.
	top, err := ldg.GetTopPolicies(ctx, domain.RegimeTrendingBull, 3, 1)
	if err != nil {
		t.Fatalf("GetTopPolicies: %v", err)
	}
	if len(top) != 1 || top[0].Policy != "ema_crossover" {
		t.Fatalf("top = %+v", top)
	}

	analysis := classifier.Classify(trendBars(150))
	rec := sel.Select(ctx, analysis, tracker.Snapshot(), 0, cfg.MaxPositions)
	if rec.Source != domain.SourceFallback {
		t.Errorf("selection source = %s, want FALLBACK under the trade minimum", rec.Source)
	}

	// Regime history was appended each cycle.
	obs, err := store.RecentRegimeObservations(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRegimeObservations: %v", err)
	}
	if len(obs) < 2 {
		t.Errorf("regime observations = %d, want at least one per cycle", len(obs))
	}
}

// TestRankedHistoryDrivesSelection seeds five winning trades and verifies
// the selector switches from exploration to the ranked policy.
func TestRankedHistoryDrivesSelection(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "rank.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	ldg := ledger.New(store, ledger.DefaultScoreConfig(), logger)
	sel := selector.New(ldg, selector.DefaultConfig(), logger)
	classifier := regime.NewClassifier(regime.DefaultConfig(), logger)

	bars := trendBars(150)
	for i := 0; i < 5; i++ {
		tr := domain.TradeRecord{
			TradeID:    fmt.Sprintf("seed-%d", i),
			Policy:     "momentum_rider",
			Regime:     domain.RegimeTrendingBull,
			Symbol:     "BTCUSDT",
			Side:       domain.SideLong,
			EntryPrice: 100,
			ExitPrice:  110,
			Size:       500,
			PnL:        50,
			PnLPct:     10,
			ExitReason: domain.ExitTakeProfit,
		}
		if err := ldg.LogTrade(ctx, tr); err != nil {
			t.Fatalf("seed trade %d: %v", i, err)
		}
	}

	analysis := classifier.Classify(bars)
	if analysis.Regime != domain.RegimeTrendingBull {
		t.Fatalf("regime = %s, want TRENDING_BULL", analysis.Regime)
	}

	rec := sel.Select(ctx, analysis, domain.RiskSnapshot{}, 0, 3)
	if rec.Source != domain.SourceHistory {
		t.Fatalf("source = %s, want HISTORY with five validated trades", rec.Source)
	}
	if rec.Policy != "momentum_rider" {
		t.Errorf("policy = %s, want ranked momentum_rider", rec.Policy)
	}
	if rec.SizeMultiplier > 1.5 {
		t.Errorf("size multiplier = %f, exceeds cap", rec.SizeMultiplier)
	}
}

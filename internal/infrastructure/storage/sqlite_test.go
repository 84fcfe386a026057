package storage_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/annealtrade/regimebot/internal/domain"
	"github.com/annealtrade/regimebot/internal/infrastructure/storage"
)

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleTrade(id string, pnl float64, exitOffset time.Duration) *domain.TradeRecord {
	exit := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC).Add(exitOffset)
	return &domain.TradeRecord{
		TradeID:    id,
		Policy:     "ema_crossover",
		Regime:     domain.RegimeTrendingBull,
		Symbol:     "BTCUSDT",
		Side:       domain.SideLong,
		EntryPrice: 50_000,
		ExitPrice:  50_000 + pnl,
		Size:       1000,
		EntryTime:  exit.Add(-time.Hour),
		ExitTime:   exit,
		PnL:        pnl,
		PnLPct:     pnl / 50_000,
		ExitReason: domain.ExitTakeProfit,
		Fees:       1.1,
	}
}

func TestInsertTradeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := sampleTrade("t-1", 120, 0)
	if err := store.InsertTrade(ctx, want); err != nil {
		t.Fatalf("InsertTrade: %v", err)
	}

	exists, err := store.TradeExists(ctx, "t-1")
	if err != nil || !exists {
		t.Fatalf("TradeExists = %v, %v", exists, err)
	}

	trades, err := store.TradesForPair(ctx, "ema_crossover", domain.RegimeTrendingBull)
	if err != nil {
		t.Fatalf("TradesForPair: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	got := trades[0]
	if got.TradeID != want.TradeID || got.PnL != want.PnL || got.ExitReason != want.ExitReason || got.Fees != want.Fees {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if !got.ExitTime.Equal(want.ExitTime) {
		t.Errorf("exit time = %v, want %v", got.ExitTime, want.ExitTime)
	}
}

func TestInsertTradeDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertTrade(ctx, sampleTrade("t-1", 120, 0)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := store.InsertTrade(ctx, sampleTrade("t-1", -50, time.Hour))
	if !errors.Is(err, domain.ErrDuplicateTrade) {
		t.Fatalf("second insert err = %v, want ErrDuplicateTrade", err)
	}

	// The original row survives untouched.
	trades, err := store.TradesForPair(ctx, "ema_crossover", domain.RegimeTrendingBull)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || trades[0].PnL != 120 {
		t.Errorf("trades after duplicate = %+v", trades)
	}
}

func TestTradesForPairOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Insert out of order; reads come back oldest exit first.
	for _, i := range []int{2, 0, 1} {
		tr := sampleTrade(fmt.Sprintf("t-%d", i), float64(i), time.Duration(i)*time.Hour)
		if err := store.InsertTrade(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	trades, err := store.TradesForPair(ctx, "ema_crossover", domain.RegimeTrendingBull)
	if err != nil {
		t.Fatal(err)
	}
	for i, tr := range trades {
		if tr.TradeID != fmt.Sprintf("t-%d", i) {
			t.Fatalf("position %d holds %s", i, tr.TradeID)
		}
	}
}

func TestUpsertPerformance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &domain.PolicyPerformance{
		Policy:     "ema_crossover",
		Regime:     domain.RegimeTrendingBull,
		TradeCount: 5,
		WinCount:   3,
		LossCount:  2,
		WinRate:    0.6,
		TotalPnL:   32,
		Score:      58.5,
		UpdatedAt:  time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertPerformance(ctx, p); err != nil {
		t.Fatalf("UpsertPerformance: %v", err)
	}

	p.TradeCount = 6
	p.Score = 61.2
	if err := store.UpsertPerformance(ctx, p); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := store.GetPerformance(ctx, "ema_crossover", domain.RegimeTrendingBull)
	if err != nil {
		t.Fatalf("GetPerformance: %v", err)
	}
	if got == nil || got.TradeCount != 6 || got.Score != 61.2 {
		t.Errorf("got %+v, want updated row", got)
	}

	missing, err := store.GetPerformance(ctx, "nope", domain.RegimeChoppyCalm)
	if err != nil {
		t.Fatalf("GetPerformance(missing): %v", err)
	}
	if missing != nil {
		t.Errorf("missing pair = %+v, want nil", missing)
	}
}

func TestTopPerformanceFilterAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows := []*domain.PolicyPerformance{
		{Policy: "a", Regime: domain.RegimeTrendingBull, TradeCount: 12, Score: 70},
		{Policy: "b", Regime: domain.RegimeTrendingBull, TradeCount: 8, Score: 85},
		{Policy: "c", Regime: domain.RegimeTrendingBull, TradeCount: 3, Score: 99},
		{Policy: "tied", Regime: domain.RegimeTrendingBull, TradeCount: 20, Score: 70},
		{Policy: "other", Regime: domain.RegimeChoppyVolatile, TradeCount: 30, Score: 95},
	}
	for _, p := range rows {
		p.UpdatedAt = time.Now().UTC()
		if err := store.UpsertPerformance(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	top, err := store.TopPerformance(ctx, domain.RegimeTrendingBull, 10, 5)
	if err != nil {
		t.Fatalf("TopPerformance: %v", err)
	}

	var names []string
	for _, p := range top {
		names = append(names, p.Policy)
	}
	want := []string{"b", "tied", "a"} // score desc, tie broken by trade count
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestRegimeObservationLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a := domain.RegimeAnalysis{
			Regime:         domain.RegimeChoppyCalm,
			Confidence:     float64(40 + i),
			ADX:            12,
			VolatilityRank: 35,
			RSI:            48,
			TrendDirection: 0,
			ObservedAt:     time.Date(2026, 8, 10, 12, i, 0, 0, time.UTC),
		}
		if err := store.InsertRegimeObservation(ctx, "BTCUSDT", a); err != nil {
			t.Fatalf("InsertRegimeObservation: %v", err)
		}
	}

	obs, err := store.RecentRegimeObservations(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRegimeObservations: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("got %d observations, want 2", len(obs))
	}
	// Newest first.
	if obs[0].Confidence != 42 || obs[1].Confidence != 41 {
		t.Errorf("order = [%f, %f], want [42, 41]", obs[0].Confidence, obs[1].Confidence)
	}
	if obs[0].Symbol != "BTCUSDT" || obs[0].Regime != domain.RegimeChoppyCalm {
		t.Errorf("row = %+v", obs[0])
	}
}

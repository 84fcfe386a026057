package risk

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestTrackerLossLimit(t *testing.T) {
	tr := NewTracker(100, zap.NewNop())

	tr.RecordPnL(-40)
	if snap := tr.Snapshot(); snap.DailyLossReached {
		t.Fatalf("limit reached at pnl %f, should not be", snap.DailyPnL)
	}

	tr.RecordPnL(-65)
	snap := tr.Snapshot()
	if !snap.DailyLossReached {
		t.Fatalf("limit not reached at pnl %f with limit %f", snap.DailyPnL, snap.DailyLossLimit)
	}
	if snap.DailyPnL != -105 {
		t.Errorf("daily pnl = %f, want -105", snap.DailyPnL)
	}

	// Wins claw the counter back over the line.
	tr.RecordPnL(20)
	if snap := tr.Snapshot(); snap.DailyLossReached {
		t.Errorf("limit still reached at pnl %f", snap.DailyPnL)
	}
}

func TestTrackerZeroLimitDisabled(t *testing.T) {
	tr := NewTracker(0, zap.NewNop())
	tr.RecordPnL(-10_000)
	if tr.Snapshot().DailyLossReached {
		t.Error("zero limit must never trip")
	}
}

func TestTrackerMidnightRollover(t *testing.T) {
	now := time.Date(2026, 8, 1, 23, 50, 0, 0, time.UTC)
	tr := NewTracker(100, zap.NewNop())
	tr.timeNow = func() time.Time { return now }
	tr.day = dateOf(now)

	tr.RecordPnL(-150)
	if !tr.Snapshot().DailyLossReached {
		t.Fatal("limit should be reached before midnight")
	}

	now = now.Add(20 * time.Minute) // crosses UTC midnight
	snap := tr.Snapshot()
	if snap.DailyLossReached {
		t.Error("limit still reached after rollover")
	}
	if snap.DailyPnL != 0 {
		t.Errorf("daily pnl after rollover = %f, want 0", snap.DailyPnL)
	}
}

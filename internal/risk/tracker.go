package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/annealtrade/regimebot/internal/domain"
)

// Tracker accumulates realized P&L per UTC day and reports whether the
// daily loss limit is breached. Counters roll over at UTC midnight.
type Tracker struct {
	lossLimit float64 // positive number; breach when dailyPnL <= -lossLimit
	logger    *zap.Logger

	mu       sync.Mutex
	dailyPnL float64
	day      time.Time
	timeNow  func() time.Time // for testing
}

func NewTracker(lossLimit float64, logger *zap.Logger) *Tracker {
	t := &Tracker{
		lossLimit: lossLimit,
		logger:    logger,
		timeNow:   time.Now,
	}
	t.day = dateOf(t.timeNow())
	return t
}

// RecordPnL folds one realized trade outcome into the daily counter.
func (t *Tracker) RecordPnL(pnl float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	t.dailyPnL += pnl

	if t.lossLimit > 0 && t.dailyPnL <= -t.lossLimit {
		t.logger.Warn("daily loss limit breached",
			zap.Float64("daily_pnl", t.dailyPnL),
			zap.Float64("loss_limit", t.lossLimit))
	}
}

// Snapshot returns the current risk state. Open-position counts are filled
// in by the lifecycle manager, which owns the position set.
func (t *Tracker) Snapshot() domain.RiskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return domain.RiskSnapshot{
		DailyPnL:         t.dailyPnL,
		DailyLossLimit:   t.lossLimit,
		DailyLossReached: t.lossLimit > 0 && t.dailyPnL <= -t.lossLimit,
	}
}

// rollover resets the counter when the UTC day has changed. Caller holds mu.
func (t *Tracker) rollover() {
	today := dateOf(t.timeNow())
	if !today.Equal(t.day) {
		t.logger.Info("daily risk counters reset",
			zap.Float64("previous_day_pnl", t.dailyPnL))
		t.dailyPnL = 0
		t.day = today
	}
}

func dateOf(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/annealtrade/regimebot/internal/domain"
	"github.com/annealtrade/regimebot/internal/ledger"
	"github.com/annealtrade/regimebot/internal/policy"
	"github.com/annealtrade/regimebot/internal/regime"
	"github.com/annealtrade/regimebot/internal/risk"
	"github.com/annealtrade/regimebot/internal/selector"
)

type Config struct {
	Symbol      string
	Interval    string // exchange kline interval, e.g. "5"
	CandleLimit int    // window size fetched each cycle

	CycleInterval  time.Duration
	RankingRefresh time.Duration
	FetchTimeout   time.Duration

	Capital            float64
	RiskPerTradePct    float64 // fraction of capital at risk per trade, e.g. 0.01
	CapitalPctPerTrade float64 // capital-percentage sizing cap, e.g. 0.10
	MaxPositions       int
	MinNotional        float64
	StopATRMult        float64
	TakeProfitATRMult  float64
	MaxHolding         time.Duration
	TakerFeePct        float64 // per fill, charged on entry and exit

	// MaxStorageRetries is the consecutive-failure budget for trade writes
	// before the loop surfaces a fatal error to the operator.
	MaxStorageRetries int
}

func DefaultConfig() Config {
	return Config{
		Interval:           "5",
		CandleLimit:        150,
		CycleInterval:      30 * time.Second,
		RankingRefresh:     10 * time.Minute,
		FetchTimeout:       10 * time.Second,
		RiskPerTradePct:    0.01,
		CapitalPctPerTrade: 0.10,
		MaxPositions:       3,
		MinNotional:        10,
		StopATRMult:        2.0,
		TakeProfitATRMult:  3.0,
		MaxHolding:         24 * time.Hour,
		TakerFeePct:        0.00055,
		MaxStorageRetries:  10,
	}
}

// State is the authoritative in-memory view of the run: capital, open
// positions and the not-yet-durable trade records. Owned by the
// Orchestrator alone; nothing mutates it from outside.
type State struct {
	Capital      float64
	RealizedPnL  float64
	ClosedTrades int
	Positions    map[string]*domain.Position
	Pending      []domain.TradeRecord // closed trades awaiting a durable write
}

// Orchestrator is the position lifecycle manager: it runs the
// fetch -> classify -> select -> monitor -> execute -> record loop and owns
// the open-position set.
type Orchestrator struct {
	cfg        Config
	source     domain.PriceSource
	classifier *regime.Classifier
	ledger     *ledger.Ledger
	selector   *selector.Selector
	registry   *policy.Registry
	risk       *risk.Tracker
	logger     *zap.Logger

	mu              sync.Mutex
	state           *State
	storageFailures int
	timeNow         func() time.Time // for testing
}

func New(cfg Config, source domain.PriceSource, classifier *regime.Classifier, ldg *ledger.Ledger, sel *selector.Selector, reg *policy.Registry, riskTracker *risk.Tracker, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		source:     source,
		classifier: classifier,
		ledger:     ldg,
		selector:   sel,
		registry:   reg,
		risk:       riskTracker,
		logger:     logger,
		state: &State{
			Capital:   cfg.Capital,
			Positions: make(map[string]*domain.Position),
		},
		timeNow: time.Now,
	}
	return o
}

// Run drives the control loop until ctx is cancelled: one cycle runs to
// completion before the next begins, separated by the cycle interval. On
// shutdown the current cycle finishes and pending trade records are flushed
// so no write is left half-applied.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator started",
		zap.String("symbol", o.cfg.Symbol),
		zap.Duration("cycle_interval", o.cfg.CycleInterval),
		zap.Float64("capital", o.cfg.Capital))

	ticker := time.NewTicker(o.cfg.CycleInterval)
	defer ticker.Stop()
	rankingTicker := time.NewTicker(o.cfg.RankingRefresh)
	defer rankingTicker.Stop()

	// First cycle immediately, then on the tick.
	if err := o.Cycle(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil
		case <-rankingTicker.C:
			o.refreshRankings(ctx)
		case <-ticker.C:
			if err := o.Cycle(ctx); err != nil {
				return err
			}
		}
	}
}

// Cycle executes one full iteration. Exit evaluation always happens before
// new-entry evaluation. The only error it returns is an exhausted storage
// retry budget; everything else degrades and retries next tick.
func (o *Orchestrator) Cycle(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.flushPending(ctx)
	if o.storageFailures > o.cfg.MaxStorageRetries {
		return fmt.Errorf("persistence outage: %d consecutive trade-write failures, %d records pending",
			o.storageFailures, len(o.state.Pending))
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	candles, err := o.source.GetCandles(fetchCtx, o.cfg.Symbol, o.cfg.Interval, o.cfg.CandleLimit)
	cancel()
	if err != nil {
		// Skip trading decisions this tick, retry on the next one.
		o.logger.Warn("price fetch failed, skipping cycle", zap.Error(err))
		return nil
	}

	analysis := o.classifier.Classify(candles)
	if err := o.ledger.RecordRegime(ctx, o.cfg.Symbol, analysis); err != nil {
		// Audit log only, selection does not depend on it.
		o.logger.Warn("regime history write failed", zap.Error(err))
	}

	o.evaluateExits(ctx, candles)

	snap := o.risk.Snapshot()
	snap.OpenPositions = len(o.state.Positions)
	snap.MaxPositions = o.cfg.MaxPositions

	rec := o.selector.Select(ctx, analysis, snap, len(o.state.Positions), o.cfg.MaxPositions)
	if rec.IsWait() {
		o.logger.Debug("selector waiting", zap.String("reason", rec.Reasoning))
		return nil
	}

	if len(o.state.Pending) > 0 {
		// A close is not durably recorded yet; no new entry decisions until
		// it is.
		o.logger.Warn("entry blocked by pending trade records",
			zap.Int("pending", len(o.state.Pending)))
		return nil
	}

	o.maybeEnter(candles, analysis, rec)
	return nil
}

// evaluateExits checks every open position against the latest close:
// stop-loss and take-profit thresholds first, then the policy's own exit
// signal, then the max-holding-time cutoff.
func (o *Orchestrator) evaluateExits(ctx context.Context, candles []domain.Candle) {
	if len(candles) == 0 {
		return
	}
	lastClose := candles[len(candles)-1].Close
	now := o.timeNow()

	for _, pos := range o.openPositions() {
		reason, detail := o.exitReason(pos, candles, lastClose, now)
		if reason == "" {
			pos.MarkToMarket(lastClose)
			continue
		}

		pos.Status = domain.StatusClosing
		o.logger.Info("closing position",
			zap.String("position_id", pos.ID),
			zap.String("policy", pos.Policy),
			zap.String("exit_reason", string(reason)),
			zap.String("detail", detail),
			zap.Float64("exit_price", lastClose))
		o.closePosition(ctx, pos, lastClose, reason)
	}
}

func (o *Orchestrator) exitReason(pos *domain.Position, candles []domain.Candle, lastClose float64, now time.Time) (domain.ExitReason, string) {
	if pos.Side == domain.SideLong {
		if pos.StopLoss > 0 && lastClose <= pos.StopLoss {
			return domain.ExitStopLoss, fmt.Sprintf("close %.4f <= stop %.4f", lastClose, pos.StopLoss)
		}
		if pos.TakeProfit > 0 && lastClose >= pos.TakeProfit {
			return domain.ExitTakeProfit, fmt.Sprintf("close %.4f >= target %.4f", lastClose, pos.TakeProfit)
		}
	} else {
		if pos.StopLoss > 0 && lastClose >= pos.StopLoss {
			return domain.ExitStopLoss, fmt.Sprintf("close %.4f >= stop %.4f", lastClose, pos.StopLoss)
		}
		if pos.TakeProfit > 0 && lastClose <= pos.TakeProfit {
			return domain.ExitTakeProfit, fmt.Sprintf("close %.4f <= target %.4f", lastClose, pos.TakeProfit)
		}
	}

	if pol, ok := o.registry.Get(pos.Policy); ok {
		if sig := pol.ExitSignal(candles, pos.EntryPrice); sig.Action == domain.ExitSell {
			return domain.ExitPolicySignal, sig.Reason
		}
	}

	if o.cfg.MaxHolding > 0 && now.Sub(pos.EntryTime) >= o.cfg.MaxHolding {
		return domain.ExitTimeout, fmt.Sprintf("held %s, max %s", now.Sub(pos.EntryTime), o.cfg.MaxHolding)
	}
	return "", ""
}

// closePosition realizes the P&L, removes the position from the open set
// and writes the trade record. A failed write goes on the pending queue so
// the close survives until it is durably recorded.
func (o *Orchestrator) closePosition(ctx context.Context, pos *domain.Position, exitPrice float64, reason domain.ExitReason) {
	pnlPct := (exitPrice - pos.EntryPrice) / pos.EntryPrice * pos.Side.Sign()
	gross := pnlPct * pos.Notional
	fees := pos.Notional * o.cfg.TakerFeePct * 2
	pnl := gross - fees

	record := domain.TradeRecord{
		TradeID:    pos.ID,
		Policy:     pos.Policy,
		Regime:     pos.Regime,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Size:       pos.Notional,
		EntryTime:  pos.EntryTime,
		ExitTime:   o.timeNow(),
		PnL:        pnl,
		PnLPct:     pnlPct * 100,
		ExitReason: reason,
		Fees:       fees,
	}

	delete(o.state.Positions, pos.ID)
	pos.Status = domain.StatusClosed
	o.state.RealizedPnL += pnl
	o.state.ClosedTrades++
	o.risk.RecordPnL(pnl)

	o.writeRecord(ctx, record)
}

func (o *Orchestrator) writeRecord(ctx context.Context, record domain.TradeRecord) {
	err := o.ledger.LogTrade(ctx, record)
	switch {
	case err == nil:
		o.storageFailures = 0
	case errors.Is(err, domain.ErrDuplicateTrade):
		// Already durably recorded; nothing to retry.
		o.storageFailures = 0
	default:
		o.storageFailures++
		o.state.Pending = append(o.state.Pending, record)
		o.logger.Error("trade write failed, queued for retry",
			zap.String("trade_id", record.TradeID),
			zap.Int("failures", o.storageFailures),
			zap.Error(err))
	}
}

// flushPending retries queued trade records. Keeps order; stops at the
// first failure so one outage does not burn the whole retry budget at once.
func (o *Orchestrator) flushPending(ctx context.Context) {
	for len(o.state.Pending) > 0 {
		record := o.state.Pending[0]
		err := o.ledger.LogTrade(ctx, record)
		if err != nil && !errors.Is(err, domain.ErrDuplicateTrade) {
			o.storageFailures++
			o.logger.Error("pending trade retry failed",
				zap.String("trade_id", record.TradeID),
				zap.Int("failures", o.storageFailures),
				zap.Error(err))
			return
		}
		o.state.Pending = o.state.Pending[1:]
		o.storageFailures = 0
		o.logger.Info("pending trade recorded", zap.String("trade_id", record.TradeID))
	}
}

// maybeEnter converts the recommendation into an open position when the
// policy's entry signal fires and the sizing clears the notional floor.
func (o *Orchestrator) maybeEnter(candles []domain.Candle, analysis domain.RegimeAnalysis, rec domain.Recommendation) {
	pol, ok := o.registry.Get(rec.Policy)
	if !ok {
		o.logger.Warn("recommended policy not registered", zap.String("policy", rec.Policy))
		return
	}

	sig := pol.EntrySignal(candles)
	if sig.Action != domain.EntryBuy {
		return
	}

	atrFrac := regime.ATRPercent(candles, 14) / 100
	if atrFrac <= 0 {
		o.logger.Debug("no volatility estimate, skipping entry")
		return
	}
	stopDist := atrFrac * o.cfg.StopATRMult

	notional := o.positionSize(rec.SizeMultiplier, stopDist)
	if notional < o.cfg.MinNotional {
		o.logger.Debug("position below minimum notional",
			zap.Float64("notional", notional),
			zap.Float64("min_notional", o.cfg.MinNotional))
		return
	}

	entry := candles[len(candles)-1].Close
	pos := &domain.Position{
		ID:         uuid.NewString(),
		Policy:     rec.Policy,
		Symbol:     o.cfg.Symbol,
		Side:       domain.SideLong,
		EntryPrice: entry,
		EntryTime:  o.timeNow(),
		Notional:   notional,
		StopLoss:   entry * (1 - stopDist),
		TakeProfit: entry * (1 + atrFrac*o.cfg.TakeProfitATRMult),
		Regime:     analysis.Regime,
		Status:     domain.StatusOpen,
		MarkPrice:  entry,
	}
	o.state.Positions[pos.ID] = pos

	o.logger.Info("position opened",
		zap.String("position_id", pos.ID),
		zap.String("policy", pos.Policy),
		zap.String("regime", string(pos.Regime)),
		zap.String("source", string(rec.Source)),
		zap.Float64("entry", entry),
		zap.Float64("notional", notional),
		zap.Float64("stop_loss", pos.StopLoss),
		zap.Float64("take_profit", pos.TakeProfit),
		zap.Float64("entry_confidence", sig.Confidence),
		zap.String("reasoning", rec.Reasoning))
}

// positionSize is the smaller of the capital-percentage cap scaled by the
// selector's multiplier and the risk-based size that puts RiskPerTradePct
// of capital at risk given the stop distance.
func (o *Orchestrator) positionSize(multiplier, stopDistFrac float64) float64 {
	if stopDistFrac <= 0 || multiplier <= 0 {
		return 0
	}
	capitalCap := o.state.Capital * o.cfg.CapitalPctPerTrade * multiplier
	riskBased := o.state.Capital * o.cfg.RiskPerTradePct / stopDistFrac
	if riskBased < capitalCap {
		return riskBased
	}
	return capitalCap
}

// refreshRankings re-queries the top policies for every tradable regime so
// subsequent selections reflect the newest aggregates.
func (o *Orchestrator) refreshRankings(ctx context.Context) {
	for _, r := range domain.TradableRegimes() {
		top, err := o.ledger.GetTopPolicies(ctx, r, 3, 0)
		if err != nil {
			o.logger.Warn("ranking refresh failed",
				zap.String("regime", string(r)), zap.Error(err))
			continue
		}
		if len(top) == 0 {
			continue
		}
		o.logger.Info("ranking refreshed",
			zap.String("regime", string(r)),
			zap.String("top_policy", top[0].Policy),
			zap.Float64("score", top[0].Score),
			zap.Int("trades", top[0].TradeCount))
	}
}

// OnPrice is the live price-stream callback: it marks open positions to
// market between cycles. Exits still fire only inside the cycle so the
// ordering guarantees hold.
func (o *Orchestrator) OnPrice(symbol string, price float64) {
	if symbol != o.cfg.Symbol {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, pos := range o.state.Positions {
		pos.MarkToMarket(price)
	}
}

// shutdown flushes pending trade records with a short grace window.
func (o *Orchestrator) shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.state.Pending) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		o.flushPending(ctx)
		cancel()
	}
	o.logger.Info("orchestrator stopped",
		zap.Int("open_positions", len(o.state.Positions)),
		zap.Int("closed_trades", o.state.ClosedTrades),
		zap.Float64("realized_pnl", o.state.RealizedPnL),
		zap.Int("unrecorded_trades", len(o.state.Pending)))
}

// openPositions returns a stable snapshot of the open set; callers may
// delete from the map while iterating the copy.
func (o *Orchestrator) openPositions() []*domain.Position {
	out := make([]*domain.Position, 0, len(o.state.Positions))
	for _, p := range o.state.Positions {
		out = append(out, p)
	}
	return out
}

// OpenPositionCount reports the size of the open set.
func (o *Orchestrator) OpenPositionCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.state.Positions)
}

// Snapshot returns a copy of the run state for inspection.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	positions := make(map[string]*domain.Position, len(o.state.Positions))
	for id, p := range o.state.Positions {
		cp := *p
		positions[id] = &cp
	}
	pending := make([]domain.TradeRecord, len(o.state.Pending))
	copy(pending, o.state.Pending)

	return State{
		Capital:      o.state.Capital,
		RealizedPnL:  o.state.RealizedPnL,
		ClosedTrades: o.state.ClosedTrades,
		Positions:    positions,
		Pending:      pending,
	}
}


package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/annealtrade/regimebot/internal/domain"
)

// SQLiteStore implements domain.TradeStore on an embedded SQLite database:
// raw trades unique on trade_id, per-(policy, regime) aggregates, and the
// append-only regime_history log.
type SQLiteStore struct {
	db *sqlx.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			trade_id TEXT PRIMARY KEY,
			policy TEXT NOT NULL,
			regime TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			size REAL NOT NULL,
			entry_time DATETIME NOT NULL,
			exit_time DATETIME NOT NULL,
			pnl REAL NOT NULL,
			pnl_pct REAL NOT NULL,
			exit_reason TEXT NOT NULL,
			fees REAL NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_policy_regime ON trades(policy, regime);`,
		`CREATE TABLE IF NOT EXISTS policy_performance (
			policy TEXT NOT NULL,
			regime TEXT NOT NULL,
			trade_count INTEGER NOT NULL,
			win_count INTEGER NOT NULL,
			loss_count INTEGER NOT NULL,
			win_rate REAL NOT NULL,
			total_pnl REAL NOT NULL,
			avg_pnl REAL NOT NULL,
			expectancy REAL NOT NULL,
			sharpe REAL NOT NULL,
			max_drawdown REAL NOT NULL,
			profit_factor REAL NOT NULL,
			score REAL NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (policy, regime)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_performance_regime_score ON policy_performance(regime, score DESC);`,
		`CREATE TABLE IF NOT EXISTS regime_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			regime TEXT NOT NULL,
			confidence REAL NOT NULL,
			adx REAL NOT NULL,
			volatility_rank REAL NOT NULL,
			rsi REAL NOT NULL,
			trend_direction INTEGER NOT NULL,
			observed_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertTrade persists one trade record. A trade_id that already exists
// maps to domain.ErrDuplicateTrade (idempotent-insert semantics).
func (s *SQLiteStore) InsertTrade(ctx context.Context, t *domain.TradeRecord) error {
	query := `INSERT INTO trades (trade_id, policy, regime, symbol, side, entry_price, exit_price, size, entry_time, exit_time, pnl, pnl_pct, exit_reason, fees)
			  VALUES (:trade_id, :policy, :regime, :symbol, :side, :entry_price, :exit_price, :size, :entry_time, :exit_time, :pnl, :pnl_pct, :exit_reason, :fees)`
	_, err := s.db.NamedExecContext(ctx, query, t)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("trade %s: %w", t.TradeID, domain.ErrDuplicateTrade)
		}
		return err
	}
	return nil
}

func (s *SQLiteStore) TradeExists(ctx context.Context, tradeID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM trades WHERE trade_id = ?`, tradeID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// TradesForPair returns every trade for a (policy, regime) pair, oldest
// first, so drawdown computation follows realized order.
func (s *SQLiteStore) TradesForPair(ctx context.Context, policy string, regime domain.Regime) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord
	query := `SELECT * FROM trades WHERE policy = ? AND regime = ? ORDER BY exit_time ASC, trade_id ASC`
	if err := s.db.SelectContext(ctx, &trades, query, policy, regime); err != nil {
		return nil, err
	}
	return trades, nil
}

func (s *SQLiteStore) UpsertPerformance(ctx context.Context, p *domain.PolicyPerformance) error {
	query := `INSERT INTO policy_performance (policy, regime, trade_count, win_count, loss_count, win_rate, total_pnl, avg_pnl, expectancy, sharpe, max_drawdown, profit_factor, score, updated_at)
			  VALUES (:policy, :regime, :trade_count, :win_count, :loss_count, :win_rate, :total_pnl, :avg_pnl, :expectancy, :sharpe, :max_drawdown, :profit_factor, :score, :updated_at)
			  ON CONFLICT(policy, regime) DO UPDATE SET
			  trade_count=excluded.trade_count,
			  win_count=excluded.win_count,
			  loss_count=excluded.loss_count,
			  win_rate=excluded.win_rate,
			  total_pnl=excluded.total_pnl,
			  avg_pnl=excluded.avg_pnl,
			  expectancy=excluded.expectancy,
			  sharpe=excluded.sharpe,
			  max_drawdown=excluded.max_drawdown,
			  profit_factor=excluded.profit_factor,
			  score=excluded.score,
			  updated_at=excluded.updated_at`
	_, err := s.db.NamedExecContext(ctx, query, p)
	return err
}

func (s *SQLiteStore) GetPerformance(ctx context.Context, policy string, regime domain.Regime) (*domain.PolicyPerformance, error) {
	var p domain.PolicyPerformance
	query := `SELECT * FROM policy_performance WHERE policy = ? AND regime = ?`
	err := s.db.GetContext(ctx, &p, query, policy, regime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TopPerformance returns the pairs for a regime meeting the minimum trade
// count, best composite score first, ties broken by sample size.
func (s *SQLiteStore) TopPerformance(ctx context.Context, regime domain.Regime, limit, minTrades int) ([]*domain.PolicyPerformance, error) {
	var out []*domain.PolicyPerformance
	query := `SELECT * FROM policy_performance
			  WHERE regime = ? AND trade_count >= ?
			  ORDER BY score DESC, trade_count DESC
			  LIMIT ?`
	if err := s.db.SelectContext(ctx, &out, query, regime, minTrades, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) InsertRegimeObservation(ctx context.Context, symbol string, a domain.RegimeAnalysis) error {
	query := `INSERT INTO regime_history (symbol, regime, confidence, adx, volatility_rank, rsi, trend_direction, observed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		symbol, a.Regime, a.Confidence, a.ADX, a.VolatilityRank, a.RSI, a.TrendDirection, a.ObservedAt)
	return err
}

func (s *SQLiteStore) RecentRegimeObservations(ctx context.Context, limit int) ([]*domain.RegimeObservation, error) {
	var out []*domain.RegimeObservation
	query := `SELECT * FROM regime_history ORDER BY id DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, err
	}
	return out, nil
}

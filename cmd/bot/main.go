package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/annealtrade/regimebot/internal/config"
	"github.com/annealtrade/regimebot/internal/infrastructure/exchange"
	"github.com/annealtrade/regimebot/internal/infrastructure/logger"
	"github.com/annealtrade/regimebot/internal/infrastructure/storage"
	"github.com/annealtrade/regimebot/internal/ledger"
	"github.com/annealtrade/regimebot/internal/orchestrator"
	"github.com/annealtrade/regimebot/internal/policy"
	"github.com/annealtrade/regimebot/internal/regime"
	"github.com/annealtrade/regimebot/internal/risk"
	"github.com/annealtrade/regimebot/internal/selector"
)

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	bybit := exchange.NewBybitClient(cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, log)
	defer bybit.Close()

	classifier := regime.NewClassifier(regime.Config{
		Lookback:               cfg.Regime.Lookback,
		ADXPeriod:              cfg.Regime.ADXPeriod,
		RSIPeriod:              cfg.Regime.RSIPeriod,
		EMAFast:                cfg.Regime.EMAFast,
		EMAMedium:              cfg.Regime.EMAMedium,
		EMASlow:                cfg.Regime.EMASlow,
		ADXTrendThreshold:      cfg.Regime.ADXTrendThreshold,
		VolPercentileThreshold: cfg.Regime.VolPercentileThreshold,
		VolHistoryCap:          cfg.Regime.VolHistoryCap,
	}, log)

	ldg := ledger.New(store, ledger.ScoreConfig{
		WeightExpectancy:   cfg.Score.WeightExpectancy,
		WeightSharpe:       cfg.Score.WeightSharpe,
		WeightWinRate:      cfg.Score.WeightWinRate,
		WeightProfitFactor: cfg.Score.WeightProfitFactor,
		WeightSampleSize:   cfg.Score.WeightSampleSize,
		MinTrades:          cfg.Score.MinTrades,
	}, log)

	sel := selector.New(ldg, selector.Config{
		MinTrades:             cfg.Score.MinTrades,
		MaxMultiplier:         cfg.Selector.MaxMultiplier,
		ExplorationConfidence: cfg.Selector.ExplorationConfidence,
		ExplorationMultiplier: cfg.Selector.ExplorationMultiplier,
	}, log)

	registry := policy.DefaultRegistry()
	log.Info("policies registered", zap.Strings("names", registry.Names()))

	riskTracker := risk.NewTracker(cfg.Trading.DailyLossLimit, log)

	orch := orchestrator.New(orchestrator.Config{
		Symbol:             cfg.Trading.Symbol,
		Interval:           cfg.Trading.Interval,
		CandleLimit:        cfg.Trading.CandleLimit,
		CycleInterval:      time.Duration(cfg.Loop.CycleIntervalSec) * time.Second,
		RankingRefresh:     time.Duration(cfg.Loop.RankingRefreshSec) * time.Second,
		FetchTimeout:       time.Duration(cfg.Loop.FetchTimeoutSec) * time.Second,
		Capital:            cfg.Trading.Capital,
		RiskPerTradePct:    cfg.Trading.RiskPerTradePct,
		CapitalPctPerTrade: cfg.Trading.CapitalPctPerTrade,
		MaxPositions:       cfg.Trading.MaxPositions,
		MinNotional:        cfg.Trading.MinNotional,
		StopATRMult:        cfg.Trading.StopATRMult,
		TakeProfitATRMult:  cfg.Trading.TakeProfitATRMult,
		MaxHolding:         time.Duration(cfg.Trading.MaxHoldingMinutes) * time.Minute,
		TakerFeePct:        cfg.Trading.TakerFeePct,
		MaxStorageRetries:  cfg.Loop.MaxStorageRetries,
	}, bybit, classifier, ldg, sel, registry, riskTracker, log)

	// Live trade stream keeps open positions marked between cycles.
	bybit.OnPrice(orch.OnPrice)
	if err := bybit.Subscribe([]string{cfg.Trading.Symbol}); err != nil {
		log.Warn("price stream unavailable, continuing with cycle fetches only", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Run(ctx); err != nil {
		log.Fatal("Orchestrator stopped with error", zap.Error(err))
	}
	log.Info("Shutdown complete")
}

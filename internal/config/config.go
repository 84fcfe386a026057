package config

import (
	"fmt"
	"math"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Exchange struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
	} `yaml:"exchange"`

	Trading struct {
		Symbol             string  `yaml:"symbol"`
		Interval           string  `yaml:"interval"`
		CandleLimit        int     `yaml:"candle_limit"`
		Capital            float64 `yaml:"capital"`
		RiskPerTradePct    float64 `yaml:"risk_per_trade_pct"`
		CapitalPctPerTrade float64 `yaml:"capital_pct_per_trade"`
		MaxPositions       int     `yaml:"max_positions"`
		MinNotional        float64 `yaml:"min_notional"`
		StopATRMult        float64 `yaml:"stop_atr_mult"`
		TakeProfitATRMult  float64 `yaml:"take_profit_atr_mult"`
		MaxHoldingMinutes  int     `yaml:"max_holding_minutes"`
		TakerFeePct        float64 `yaml:"taker_fee_pct"`
		DailyLossLimit     float64 `yaml:"daily_loss_limit"`
	} `yaml:"trading"`

	Regime struct {
		Lookback               int     `yaml:"lookback"`
		ADXPeriod              int     `yaml:"adx_period"`
		RSIPeriod              int     `yaml:"rsi_period"`
		EMAFast                int     `yaml:"ema_fast"`
		EMAMedium              int     `yaml:"ema_medium"`
		EMASlow                int     `yaml:"ema_slow"`
		ADXTrendThreshold      float64 `yaml:"adx_trend_threshold"`
		VolPercentileThreshold float64 `yaml:"vol_percentile_threshold"`
		VolHistoryCap          int     `yaml:"vol_history_cap"`
	} `yaml:"regime"`

	Score struct {
		WeightExpectancy   float64 `yaml:"weight_expectancy"`
		WeightSharpe       float64 `yaml:"weight_sharpe"`
		WeightWinRate      float64 `yaml:"weight_win_rate"`
		WeightProfitFactor float64 `yaml:"weight_profit_factor"`
		WeightSampleSize   float64 `yaml:"weight_sample_size"`
		MinTrades          int     `yaml:"min_trades"`
	} `yaml:"score"`

	Selector struct {
		MaxMultiplier         float64 `yaml:"max_multiplier"`
		ExplorationConfidence float64 `yaml:"exploration_confidence"`
		ExplorationMultiplier float64 `yaml:"exploration_multiplier"`
	} `yaml:"selector"`

	Loop struct {
		CycleIntervalSec  int `yaml:"cycle_interval_sec"`
		RankingRefreshSec int `yaml:"ranking_refresh_sec"`
		FetchTimeoutSec   int `yaml:"fetch_timeout_sec"`
		MaxStorageRetries int `yaml:"max_storage_retries"`
	} `yaml:"loop"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Load reads the yaml config, fills defaults for omitted fields and applies
// environment overrides. A .env file next to the binary is honored when
// present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Exchange.RESTEndpoint == "" {
		c.Exchange.RESTEndpoint = "https://api.bybit.com"
	}
	if c.Exchange.WSEndpoint == "" {
		c.Exchange.WSEndpoint = "wss://stream.bybit.com/v5/public/linear"
	}

	t := &c.Trading
	if t.Symbol == "" {
		t.Symbol = "BTCUSDT"
	}
	if t.Interval == "" {
		t.Interval = "5"
	}
	if t.CandleLimit == 0 {
		t.CandleLimit = 150
	}
	if t.Capital == 0 {
		t.Capital = 10000
	}
	if t.RiskPerTradePct == 0 {
		t.RiskPerTradePct = 0.01
	}
	if t.CapitalPctPerTrade == 0 {
		t.CapitalPctPerTrade = 0.10
	}
	if t.MaxPositions == 0 {
		t.MaxPositions = 3
	}
	if t.MinNotional == 0 {
		t.MinNotional = 10
	}
	if t.StopATRMult == 0 {
		t.StopATRMult = 2.0
	}
	if t.TakeProfitATRMult == 0 {
		t.TakeProfitATRMult = 3.0
	}
	if t.MaxHoldingMinutes == 0 {
		t.MaxHoldingMinutes = 24 * 60
	}
	if t.TakerFeePct == 0 {
		t.TakerFeePct = 0.00055
	}
	if t.DailyLossLimit == 0 {
		t.DailyLossLimit = t.Capital * 0.03
	}

	r := &c.Regime
	if r.Lookback == 0 {
		r.Lookback = 60
	}
	if r.ADXPeriod == 0 {
		r.ADXPeriod = 14
	}
	if r.RSIPeriod == 0 {
		r.RSIPeriod = 14
	}
	if r.EMAFast == 0 {
		r.EMAFast = 20
	}
	if r.EMAMedium == 0 {
		r.EMAMedium = 50
	}
	if r.EMASlow == 0 {
		r.EMASlow = 100
	}
	if r.ADXTrendThreshold == 0 {
		r.ADXTrendThreshold = 25
	}
	if r.VolPercentileThreshold == 0 {
		r.VolPercentileThreshold = 70
	}
	if r.VolHistoryCap == 0 {
		r.VolHistoryCap = 500
	}

	s := &c.Score
	if s.WeightExpectancy == 0 && s.WeightSharpe == 0 && s.WeightWinRate == 0 &&
		s.WeightProfitFactor == 0 && s.WeightSampleSize == 0 {
		s.WeightExpectancy = 0.30
		s.WeightSharpe = 0.25
		s.WeightWinRate = 0.20
		s.WeightProfitFactor = 0.15
		s.WeightSampleSize = 0.10
	}
	if s.MinTrades == 0 {
		s.MinTrades = 5
	}

	sel := &c.Selector
	if sel.MaxMultiplier == 0 {
		sel.MaxMultiplier = 1.5
	}
	if sel.ExplorationConfidence == 0 {
		sel.ExplorationConfidence = 50
	}
	if sel.ExplorationMultiplier == 0 {
		sel.ExplorationMultiplier = 0.5
	}

	l := &c.Loop
	if l.CycleIntervalSec == 0 {
		l.CycleIntervalSec = 30
	}
	if l.RankingRefreshSec == 0 {
		l.RankingRefreshSec = 600
	}
	if l.FetchTimeoutSec == 0 {
		l.FetchTimeoutSec = 10
	}
	if l.MaxStorageRetries == 0 {
		l.MaxStorageRetries = 10
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "regimebot.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Environment overrides for deployment without editing the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("REGIMEBOT_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("REGIMEBOT_SYMBOL"); v != "" {
		c.Trading.Symbol = v
	}
	if v := os.Getenv("REGIMEBOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("REGIMEBOT_REST_ENDPOINT"); v != "" {
		c.Exchange.RESTEndpoint = v
	}
	if v := os.Getenv("REGIMEBOT_WS_ENDPOINT"); v != "" {
		c.Exchange.WSEndpoint = v
	}
}

func (c *Config) Validate() error {
	if c.Trading.Capital <= 0 {
		return fmt.Errorf("trading.capital must be positive, got %f", c.Trading.Capital)
	}
	if c.Trading.RiskPerTradePct <= 0 || c.Trading.RiskPerTradePct >= 1 {
		return fmt.Errorf("trading.risk_per_trade_pct must be in (0, 1), got %f", c.Trading.RiskPerTradePct)
	}
	if c.Trading.CapitalPctPerTrade <= 0 || c.Trading.CapitalPctPerTrade > 1 {
		return fmt.Errorf("trading.capital_pct_per_trade must be in (0, 1], got %f", c.Trading.CapitalPctPerTrade)
	}
	if c.Trading.MaxPositions < 1 {
		return fmt.Errorf("trading.max_positions must be at least 1, got %d", c.Trading.MaxPositions)
	}

	weightSum := c.Score.WeightExpectancy + c.Score.WeightSharpe + c.Score.WeightWinRate +
		c.Score.WeightProfitFactor + c.Score.WeightSampleSize
	if math.Abs(weightSum-1.0) > 0.001 {
		return fmt.Errorf("score weights must sum to 1.0, got %f", weightSum)
	}

	if c.Regime.Lookback < 2*c.Regime.ADXPeriod+1 {
		return fmt.Errorf("regime.lookback %d too short for adx_period %d", c.Regime.Lookback, c.Regime.ADXPeriod)
	}
	return nil
}

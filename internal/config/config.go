// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Exchange describes venue connectivity. API credentials are never stored in
// YAML; they are resolved from the environment by the trader binary.
type Exchange struct {
	SpotRESTURL    string `yaml:"spot_rest_url"`
	FuturesRESTURL string `yaml:"futures_rest_url"`
	SpotWSURL      string `yaml:"spot_ws_url"`
	FuturesWSURL   string `yaml:"futures_ws_url"`
	Testnet        bool   `yaml:"testnet"`
	RecvWindowMs   int    `yaml:"recv_window_ms"`
}

// Symbol is one fleet entry: the traded pair plus its capital allocation and
// optional per-symbol threshold overrides (zero means "use strategy default").
type Symbol struct {
	Name     string  `yaml:"name"`
	Capital  float64 `yaml:"capital_usd"`
	EntryZ   float64 `yaml:"entry_z"`
	ExitZ    float64 `yaml:"exit_z"`
	Lookback int     `yaml:"lookback"`
}

// Strategy groups the spread-model and throttle knobs shared by all engines.
type Strategy struct {
	Model            string  `yaml:"model"` // "zscore" or "kalman"
	Lookback         int     `yaml:"lookback"`
	EntryZ           float64 `yaml:"entry_z"`
	ExitZ            float64 `yaml:"exit_z"`
	FeeRate          float64 `yaml:"fee_rate"`
	AllowShortSpread bool    `yaml:"allow_short_spread"`
	ModelSleepMs     int     `yaml:"model_sleep_ms"`
	TradeSleepMs     int     `yaml:"trade_sleep_ms"`
	KalmanQBase      float64 `yaml:"kalman_q_base"`
	KalmanQBeta      float64 `yaml:"kalman_q_beta"`
	KalmanR          float64 `yaml:"kalman_r"`
}

// Execution tunes order placement and position lifecycle throttles.
type Execution struct {
	MinTradeIntervalSec int  `yaml:"min_trade_interval_sec"`
	MinHoldingSec       int  `yaml:"min_holding_sec"`
	ExitTimeoutSec      int  `yaml:"exit_timeout_sec"`
	UseBookBasedExit    bool `yaml:"use_book_based_exit"`
	OrderRetries        int  `yaml:"order_retries"`
}

// Feed selects how quotes are sourced.
type Feed struct {
	UseWebsocket   bool `yaml:"use_websocket"`
	UseMidPrice    bool `yaml:"use_mid_price"`
	PollIntervalMs int  `yaml:"poll_interval_ms"`
}

// Risk encodes guard-rails for how much size the engines may take on.
type Risk struct {
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade"`
	MaxOpenPositions    int     `yaml:"max_open_positions"`
}

// History configures the asynchronous trade-log pipeline.
type History struct {
	CSVPathTemplate string `yaml:"csv_path_template"` // {symbol} and {date} placeholders
	QueueSize       int    `yaml:"queue_size"`
	Policy          string `yaml:"policy"` // "block" or "drop_oldest"
	PostgresDSN     string `yaml:"postgres_dsn"`
}

// Telegram toggles close notifications. Token and chat id come from the env.
type Telegram struct {
	Enabled bool `yaml:"enabled"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Exchange  Exchange  `yaml:"exchange"`
	Symbols   []Symbol  `yaml:"symbols"`
	Strategy  Strategy  `yaml:"strategy"`
	Execution Execution `yaml:"execution"`
	Feed      Feed      `yaml:"feed"`
	Risk      Risk      `yaml:"risk"`
	History   History   `yaml:"history"`
	Telegram  Telegram  `yaml:"telegram"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Strategy.Lookback <= 0 {
		c.Strategy.Lookback = 120
	}
	if c.Strategy.EntryZ == 0 {
		c.Strategy.EntryZ = 1.5
	}
	if c.Strategy.ExitZ == 0 {
		c.Strategy.ExitZ = 0.5
	}
	if c.Strategy.ModelSleepMs <= 0 {
		c.Strategy.ModelSleepMs = 30000
	}
	if c.Strategy.TradeSleepMs <= 0 {
		c.Strategy.TradeSleepMs = 200
	}
	if c.Execution.OrderRetries <= 0 {
		c.Execution.OrderRetries = 3
	}
	if c.Execution.ExitTimeoutSec <= 0 {
		c.Execution.ExitTimeoutSec = 900
	}
	if c.Feed.PollIntervalMs <= 0 {
		c.Feed.PollIntervalMs = 1000
	}
	if c.History.QueueSize <= 0 {
		c.History.QueueSize = 256
	}
	if c.History.Policy == "" {
		c.History.Policy = "block"
	}
}

// StrategyFor resolves the effective strategy for one fleet entry, applying
// per-symbol overrides on top of the shared defaults.
func (c *Config) StrategyFor(sym Symbol) Strategy {
	s := c.Strategy
	if sym.EntryZ > 0 {
		s.EntryZ = sym.EntryZ
	}
	if sym.ExitZ > 0 {
		s.ExitZ = sym.ExitZ
	}
	if sym.Lookback > 0 {
		s.Lookback = sym.Lookback
	}
	return s
}

// ModelSleep returns the model-loop refresh interval.
func (s Strategy) ModelSleep() time.Duration {
	return time.Duration(s.ModelSleepMs) * time.Millisecond
}

// TradeSleep returns the signal-loop idle interval.
func (s Strategy) TradeSleep() time.Duration {
	return time.Duration(s.TradeSleepMs) * time.Millisecond
}

// PollInterval returns the REST polling cadence for the quote feed.
func (f Feed) PollInterval() time.Duration {
	return time.Duration(f.PollIntervalMs) * time.Millisecond
}

// MinTradeInterval returns the minimum spacing between position entries.
func (e Execution) MinTradeInterval() time.Duration {
	return time.Duration(e.MinTradeIntervalSec) * time.Second
}

// MinHolding returns how long a position must be held before exit evaluation.
func (e Execution) MinHolding() time.Duration {
	return time.Duration(e.MinHoldingSec) * time.Second
}

// ExitTimeout returns the maximum holding time before a book-based exit stops
// waiting for non-negative PnL.
func (e Execution) ExitTimeout() time.Duration {
	return time.Duration(e.ExitTimeoutSec) * time.Second
}

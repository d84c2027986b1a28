// Package config loads configuration shared by both CLI entry points
// (timeseries-aggregator, simulator-cli) from a YAML file with environment
// variable overrides, grounded on 0xtitan6-polymarket-mm's viper/
// mapstructure config loader.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment-variable prefix for overrides, e.g.
// LUMENEX_STORE_DSN overrides store.dsn.
const EnvPrefix = "LUMENEX"

// Config is the top-level configuration both CLIs load.
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Simulator  SimulatorConfig  `mapstructure:"simulator"`
	Markets    []MarketConfig   `mapstructure:"markets"`
}

// StoreConfig selects and connects the persistent store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // loaded but not consulted: store.Open picks the backend from the DSN
	DSN    string `mapstructure:"dsn"`
}

// LoggingConfig controls zerolog's level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // "console" or "json"
}

// AggregatorConfig holds the timeseries-aggregator CLI's defaults.
type AggregatorConfig struct {
	DefaultInterval string `mapstructure:"default_interval"`
	DefaultScope    string `mapstructure:"default_scope"`
}

// SimulatorConfig holds the simulator-cli's defaults.
type SimulatorConfig struct {
	TradesPerAccount int             `mapstructure:"trades_per_account"`
	MinAmount        decimal.Decimal `mapstructure:"min_amount"`
	MaxAmount        decimal.Decimal `mapstructure:"max_amount"`
	InitialBudget    decimal.Decimal `mapstructure:"initial_budget"`
	BidPriceOffset   decimal.Decimal `mapstructure:"bid_price_offset"`
	AskPriceOffset   decimal.Decimal `mapstructure:"ask_price_offset"`
	StateDir         string          `mapstructure:"state_dir"`
	MaxRetries       int             `mapstructure:"max_retries"`
	BaseRetryDelay   time.Duration   `mapstructure:"base_retry_delay"`
}

// MarketConfig carries per-market price-band discipline settings (spec §4.4).
// Only PriceBandPercent is applied: internal/app.Bootstrap hands it to the
// risk checker as a percentage band around the reference price. PLo, PHi and
// Regulated are loaded but not used; whether a market is regulated comes
// from the market catalog.
type MarketConfig struct {
	MarketID         string          `mapstructure:"market_id"`
	Regulated        bool            `mapstructure:"regulated"`
	PriceBandPercent decimal.Decimal `mapstructure:"price_band_percent"`
	PLo              decimal.Decimal `mapstructure:"p_lo"`
	PHi              decimal.Decimal `mapstructure:"p_hi"`
}

// Load reads config from a YAML file at path, applying LUMENEX_-prefixed
// environment variable overrides (dots replaced with underscores, matching
// the teacher's POLY_ convention).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc()))
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "lumenex.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("aggregator.default_interval", "1min")
	v.SetDefault("aggregator.default_scope", "single")
	v.SetDefault("simulator.trades_per_account", 10)
	v.SetDefault("simulator.state_dir", "./simulator-state")
	v.SetDefault("simulator.max_retries", 3)
	v.SetDefault("simulator.base_retry_delay", "500ms")
}

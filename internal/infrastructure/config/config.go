package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"tokentrader/internal/domain/model"
)

type Config struct {
	App struct {
		LogLevel         string `toml:"log_level"`
		TickIntervalMs   int    `toml:"tick_interval_ms"`
		StatusEveryTicks int    `toml:"status_every_ticks"`
		ModeFile         string `toml:"mode_file"`
	} `toml:"app"`

	Trading struct {
		PositionSizeBase float64 `toml:"position_size_base"`
		MaxPositions     int     `toml:"max_positions"`
		MaxTradesPerDay  int     `toml:"max_trades_per_day"`
		StopLossPercent  float64 `toml:"stop_loss_percent"`
	} `toml:"trading"`

	Trailing struct {
		ActivationThreshold float64 `toml:"activation_threshold"`
		Bands               []Band  `toml:"bands"`
	} `toml:"trailing"`

	TimeExit struct {
		StagnationHours      float64 `toml:"stagnation_hours"`
		StagnationMinProfit  float64 `toml:"stagnation_min_profit"`
		LowMomentumHours     float64 `toml:"low_momentum_hours"`
		LowMomentumMinProfit float64 `toml:"low_momentum_min_profit"`
		MaximumHours         float64 `toml:"maximum_hours"`
		EmergencyHours       float64 `toml:"emergency_hours"`
	} `toml:"time_exit"`

	Oracle struct {
		HTTPURL      string `toml:"http_url"`
		WsURL        string `toml:"ws_url"` // when set, the streaming oracle is used
		RetryTries   int    `toml:"retry_tries"`
		RetryDelayMs int    `toml:"retry_delay_ms"`
		StaleAfterMs int    `toml:"stale_after_ms"`
	} `toml:"oracle"`

	Venue struct {
		RPCURL          string  `toml:"rpc_url"`
		RouterAddress   string  `toml:"router_address"`
		WrappedNative   string  `toml:"wrapped_native"`
		ChainID         int64   `toml:"chain_id"`
		PoolFee         int64   `toml:"pool_fee"` // e.g. 3000 = 0.3%
		SlippagePercent float64 `toml:"slippage_percent"`
		DeadlineSec     int64   `toml:"deadline_sec"`
		PrivateKey      string  `toml:"-"` // env only, never in the file
	} `toml:"venue"`

	Snapshot struct {
		Dir string `toml:"dir"`
	} `toml:"snapshot"`

	SQLite struct {
		Path string `toml:"path"`
	} `toml:"sqlite"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"-"` // env only
	} `toml:"postgres"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		DB       int    `toml:"db"`
		Prefix   string `toml:"prefix"`
		Stream   string `toml:"stream"`
		Channel  string `toml:"channel"`
		Password string `toml:"-"` // env only
	} `toml:"redis"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	loadSecrets(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TrailingConfig converts the raw bands into the domain snapshot handed to
// newly opened positions, sorted by ascending min_profit.
func (c *Config) TrailingConfig() model.TrailingConfig {
	out := model.TrailingConfig{ActivationThreshold: c.Trailing.ActivationThreshold}
	for _, b := range c.Trailing.Bands {
		out.Bands = append(out.Bands, model.TierBand{MinProfit: b.MinProfit, MaxProfit: b.MaxProfit, Distance: b.Distance})
	}
	sort.Slice(out.Bands, func(i, j int) bool { return out.Bands[i].MinProfit < out.Bands[j].MinProfit })
	return out
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.TickIntervalMs <= 0 {
		cfg.App.TickIntervalMs = 1000
	}
	if cfg.App.StatusEveryTicks <= 0 {
		cfg.App.StatusEveryTicks = 10
	}
	if cfg.App.ModeFile == "" {
		cfg.App.ModeFile = "configs/mode.toml"
	}

	if cfg.Trading.PositionSizeBase <= 0 {
		cfg.Trading.PositionSizeBase = 0.15
	}
	if cfg.Trading.MaxPositions <= 0 {
		cfg.Trading.MaxPositions = 2
	}
	if cfg.Trading.MaxTradesPerDay <= 0 {
		cfg.Trading.MaxTradesPerDay = 3
	}
	if cfg.Trading.StopLossPercent <= 0 {
		cfg.Trading.StopLossPercent = 5
	}

	if cfg.Trailing.ActivationThreshold <= 0 {
		cfg.Trailing.ActivationThreshold = 12
	}
	if len(cfg.Trailing.Bands) == 0 {
		cfg.Trailing.Bands = defaultBands()
	}

	if cfg.TimeExit.StagnationHours <= 0 {
		cfg.TimeExit.StagnationHours = 24
	}
	if cfg.TimeExit.StagnationMinProfit <= 0 {
		cfg.TimeExit.StagnationMinProfit = 5
	}
	if cfg.TimeExit.LowMomentumHours <= 0 {
		cfg.TimeExit.LowMomentumHours = 48
	}
	if cfg.TimeExit.LowMomentumMinProfit <= 0 {
		cfg.TimeExit.LowMomentumMinProfit = 20
	}
	if cfg.TimeExit.MaximumHours <= 0 {
		cfg.TimeExit.MaximumHours = 72
	}
	if cfg.TimeExit.EmergencyHours <= 0 {
		cfg.TimeExit.EmergencyHours = 120
	}

	if cfg.Oracle.RetryTries <= 0 {
		cfg.Oracle.RetryTries = 3
	}
	if cfg.Oracle.RetryDelayMs <= 0 {
		cfg.Oracle.RetryDelayMs = 2000
	}
	if cfg.Oracle.StaleAfterMs <= 0 {
		cfg.Oracle.StaleAfterMs = 30000
	}

	if cfg.Venue.PoolFee <= 0 {
		cfg.Venue.PoolFee = 3000
	}
	if cfg.Venue.SlippagePercent <= 0 {
		cfg.Venue.SlippagePercent = 3
	}
	if cfg.Venue.DeadlineSec <= 0 {
		cfg.Venue.DeadlineSec = 300
	}

	if cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = "data/positions"
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "data/trader.db"
	}

	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "tokentrader"
	}
}

// loadSecrets pulls sensitive values from the environment so they never live
// in the config file.
func loadSecrets(cfg *Config) {
	cfg.Venue.PrivateKey = strings.TrimSpace(os.Getenv("VENUE_PRIVATE_KEY"))
	cfg.Postgres.DSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
}

func validate(cfg *Config) error {
	cfg.Oracle.HTTPURL = strings.TrimSpace(cfg.Oracle.HTTPURL)
	cfg.Oracle.WsURL = strings.TrimSpace(cfg.Oracle.WsURL)
	if cfg.Oracle.HTTPURL == "" && cfg.Oracle.WsURL == "" {
		return errors.New("oracle.http_url and oracle.ws_url are both empty")
	}

	bands := cfg.Trailing.Bands
	for i, b := range bands {
		if b.MaxProfit <= b.MinProfit {
			return fmt.Errorf("trailing.bands[%d]: max_profit must exceed min_profit", i)
		}
		if b.Distance <= 0 || b.Distance >= 100 {
			return fmt.Errorf("trailing.bands[%d]: distance must be in (0, 100)", i)
		}
	}

	if cfg.Postgres.Enabled && cfg.Postgres.DSN == "" {
		return errors.New("postgres enabled but POSTGRES_DSN is not set")
	}
	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis enabled but redis.addr is empty")
	}
	return nil
}

// Band is one trailing tier in the config file: profit range [min, max) in
// percent mapped to a trailing distance from the peak.
type Band struct {
	MinProfit float64 `toml:"min_profit"`
	MaxProfit float64 `toml:"max_profit"`
	Distance  float64 `toml:"distance"`
}

func defaultBands() []Band {
	return []Band{
		{MinProfit: 12, MaxProfit: 30, Distance: 3},
		{MinProfit: 30, MaxProfit: 100, Distance: 5},
		{MinProfit: 100, MaxProfit: 300, Distance: 10},
		{MinProfit: 300, MaxProfit: 99999, Distance: 30},
	}
}

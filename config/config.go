// Package config loads the agent configuration from a YAML file, an
// optional .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/phenomenon0/courtside/pkg/hoops"
	"github.com/phenomenon0/courtside/pkg/logger"
	"github.com/phenomenon0/courtside/pkg/trader/paper"
	"github.com/phenomenon0/courtside/pkg/trader/policy"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the full agent configuration.
type Config struct {
	Strategy hoops.Config  `yaml:"strategy"`
	Paper    PaperConfig   `yaml:"paper"`
	Policy   PolicyConfig  `yaml:"policy"`
	Feed     FeedConfig    `yaml:"feed"`
	HTTP     HTTPConfig    `yaml:"http"`
	Journal  JournalConfig `yaml:"journal"`
	Log      LogConfig     `yaml:"log"`
}

// PaperConfig configures the simulated venue.
type PaperConfig struct {
	InitialBalance float64 `yaml:"initial_balance"`
	MakerFeeBps    float64 `yaml:"maker_fee_bps"`
	TakerFeeBps    float64 `yaml:"taker_fee_bps"`
	SlippageBps    float64 `yaml:"slippage_bps"`
}

// PolicyConfig holds the venue's pre-trade limits.
type PolicyConfig struct {
	MaxOrderNotional float64 `yaml:"max_order_notional"`
	MaxOpenOrders    int     `yaml:"max_open_orders"`
	MaxDailyOrders   int     `yaml:"max_daily_orders"`
	MaxDailyVolume   float64 `yaml:"max_daily_volume"`
}

// FeedConfig selects where events come from. Either or both may be set;
// with neither, events only arrive through the HTTP ingest endpoint.
type FeedConfig struct {
	WSURL          string            `yaml:"ws_url"`
	Subscribe      map[string]string `yaml:"subscribe"` // sent after every (re)connect
	PollURL        string            `yaml:"poll_url"`
	PollIntervalMS int               `yaml:"poll_interval_ms"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// JournalConfig controls the audit journal.
type JournalConfig struct {
	DSN string `yaml:"dsn"` // SQLite path, ":memory:", or empty to disable
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug | info | warn | error
	Format     string `yaml:"format"` // text | json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a configuration that runs without a file.
func Default() *Config {
	return &Config{
		Strategy: hoops.DefaultConfig(),
		Paper: PaperConfig{
			InitialBalance: 100000,
		},
		Policy: PolicyConfig{
			MaxOrderNotional: 250000,
			MaxOpenOrders:    50,
			MaxDailyOrders:   10000,
			MaxDailyVolume:   50000000,
		},
		Feed: FeedConfig{
			PollIntervalMS: 500,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Journal: JournalConfig{
			DSN: "courtside.db",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies .env and
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides overwrites values from environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("COURTSIDE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("COURTSIDE_FEED_WS_URL"); v != "" {
		cfg.Feed.WSURL = v
	}
	if v := os.Getenv("COURTSIDE_FEED_POLL_URL"); v != "" {
		cfg.Feed.PollURL = v
	}
	if v, ok := os.LookupEnv("COURTSIDE_JOURNAL_DSN"); ok {
		cfg.Journal.DSN = v
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Strategy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("strategy: %w", err))
	}
	if c.Paper.InitialBalance <= 0 {
		errs = append(errs, fmt.Errorf("paper.initial_balance must be positive, got %v", c.Paper.InitialBalance))
	}
	if c.Paper.MakerFeeBps < 0 || c.Paper.TakerFeeBps < 0 || c.Paper.SlippageBps < 0 {
		errs = append(errs, errors.New("paper fees and slippage must not be negative"))
	}
	if c.Policy.MaxOrderNotional <= 0 || c.Policy.MaxDailyVolume <= 0 {
		errs = append(errs, errors.New("policy notional and volume limits must be positive"))
	}
	if c.Policy.MaxOpenOrders <= 0 || c.Policy.MaxDailyOrders <= 0 {
		errs = append(errs, errors.New("policy order limits must be positive"))
	}
	for name, raw := range map[string]string{"feed.ws_url": c.Feed.WSURL, "feed.poll_url": c.Feed.PollURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s is not an absolute URL: %q", name, raw))
		}
	}
	if c.Feed.PollIntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("feed.poll_interval_ms must be positive, got %d", c.Feed.PollIntervalMS))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// PollInterval returns the feed poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Feed.PollIntervalMS) * time.Millisecond
}

// Simulation converts the paper section for the paper engine.
func (p PaperConfig) Simulation() *paper.SimulationConfig {
	sim := paper.DefaultSimulationConfig()
	sim.InitialBalance = decimal.NewFromFloat(p.InitialBalance)
	sim.MakerFeeBps = decimal.NewFromFloat(p.MakerFeeBps)
	sim.TakerFeeBps = decimal.NewFromFloat(p.TakerFeeBps)
	sim.SlippageBps = decimal.NewFromFloat(p.SlippageBps)
	return sim
}

// Limits converts the policy section for the policy engine.
func (p PolicyConfig) Limits() *policy.VenueLimits {
	return &policy.VenueLimits{
		MaxOrderNotional: decimal.NewFromFloat(p.MaxOrderNotional),
		MaxOpenOrders:    p.MaxOpenOrders,
		MaxDailyOrders:   p.MaxDailyOrders,
		MaxDailyVolume:   decimal.NewFromFloat(p.MaxDailyVolume),
	}
}

// Logger converts the log section for logger.Init.
func (l LogConfig) Logger() logger.Config {
	return logger.Config{
		Level:      l.Level,
		Format:     l.Format,
		OutputFile: l.File,
		MaxSize:    l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

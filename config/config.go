package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/barfetch/alpaca"
	"github.com/rustyeddy/barfetch/binance"
	"github.com/rustyeddy/barfetch/cache"
	"github.com/rustyeddy/barfetch/polygon"
)

// Config is the complete barfetch configuration
type Config struct {
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Binance BinanceConfig `json:"binance" yaml:"binance"`
	Alpaca  AlpacaConfig  `json:"alpaca" yaml:"alpaca"`
	Polygon PolygonConfig `json:"polygon" yaml:"polygon"`
}

// CacheConfig locates the CSV cache
type CacheConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// JournalConfig contains fetch journaling parameters
type JournalConfig struct {
	Type string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig controls the slog handler
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format     string `json:"format" yaml:"format"` // text or json
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
}

// HTTPConfig is shared by every provider section
type HTTPConfig struct {
	Timeout             string  `json:"timeout" yaml:"timeout"` // e.g. "30s"
	RequestsPerSecond   float64 `json:"requests_per_second" yaml:"requests_per_second"`
	RateLimitWait       string  `json:"rate_limit_wait" yaml:"rate_limit_wait"`
	MaxRateLimitRetries int     `json:"max_rate_limit_retries" yaml:"max_rate_limit_retries"`
}

// BinanceConfig contains the crypto exchange settings
type BinanceConfig struct {
	BaseURL string     `json:"base_url" yaml:"base_url"`
	HTTP    HTTPConfig `json:"http" yaml:"http"`
}

// AlpacaConfig contains the equities broker settings
type AlpacaConfig struct {
	KeyID      string     `json:"key_id,omitempty" yaml:"key_id,omitempty"`
	SecretKey  string     `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	DataURL    string     `json:"data_url" yaml:"data_url"`
	TradingURL string     `json:"trading_url" yaml:"trading_url"`
	Feed       string     `json:"feed,omitempty" yaml:"feed,omitempty"`
	HTTP       HTTPConfig `json:"http" yaml:"http"`
}

// PolygonConfig contains the equities vendor settings
type PolygonConfig struct {
	APIKey  string     `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string     `json:"base_url" yaml:"base_url"`
	HTTP    HTTPConfig `json:"http" yaml:"http"`
}

// Load reads .env if present, then the config file at path (or the
// defaults when path is empty), then applies environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON).
// Sections missing from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides settings from the environment. Credentials from the
// environment only fill keys the config file left empty.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BARFETCH_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("BARFETCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	envDefault(&c.Alpaca.KeyID, alpaca.EnvKeyID)
	envDefault(&c.Alpaca.SecretKey, alpaca.EnvSecretKey)
	envDefault(&c.Polygon.APIKey, polygon.EnvAPIKey)
}

func envDefault(field *string, key string) {
	if *field != "" {
		return
	}
	*field = os.Getenv(key)
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv", "sqlite":
		if c.Journal.Path == "" {
			return fmt.Errorf("journal path required for %s type", c.Journal.Type)
		}
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'none'")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json'")
	}
	for name, h := range map[string]HTTPConfig{
		"binance": c.Binance.HTTP,
		"alpaca":  c.Alpaca.HTTP,
		"polygon": c.Polygon.HTTP,
	} {
		if err := h.validate(); err != nil {
			return fmt.Errorf("%s.http: %w", name, err)
		}
	}
	return nil
}

func (h HTTPConfig) validate() error {
	if _, err := duration(h.Timeout); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	if _, err := duration(h.RateLimitWait); err != nil {
		return fmt.Errorf("rate_limit_wait: %w", err)
	}
	if h.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if h.MaxRateLimitRetries < 0 {
		return fmt.Errorf("max_rate_limit_retries must not be negative")
	}
	return nil
}

func duration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Store returns the cache store for the configured directory.
func (c *Config) Store() *cache.Store {
	return cache.NewStore(c.Cache.Dir)
}

// BinanceConfig converts the binance section for binance.New.
func (c *Config) BinanceConfig() binance.Config {
	out := binance.DefaultConfig()
	if c.Binance.BaseURL != "" {
		out.BaseURL = c.Binance.BaseURL
	}
	c.Binance.HTTP.apply(&out.Timeout, &out.RequestsPerSecond, &out.RateLimitWait, &out.MaxRateLimitRetries)
	return out
}

// AlpacaConfig converts the alpaca section for alpaca.New.
func (c *Config) AlpacaConfig() alpaca.Config {
	out := alpaca.DefaultConfig()
	out.KeyID = c.Alpaca.KeyID
	out.SecretKey = c.Alpaca.SecretKey
	out.Feed = c.Alpaca.Feed
	if c.Alpaca.DataURL != "" {
		out.DataURL = c.Alpaca.DataURL
	}
	if c.Alpaca.TradingURL != "" {
		out.TradingURL = c.Alpaca.TradingURL
	}
	c.Alpaca.HTTP.apply(&out.Timeout, &out.RequestsPerSecond, &out.RateLimitWait, &out.MaxRateLimitRetries)
	return out
}

// PolygonConfig converts the polygon section for polygon.New.
func (c *Config) PolygonConfig() polygon.Config {
	out := polygon.DefaultConfig()
	out.APIKey = c.Polygon.APIKey
	if c.Polygon.BaseURL != "" {
		out.BaseURL = c.Polygon.BaseURL
	}
	c.Polygon.HTTP.apply(&out.Timeout, &out.RequestsPerSecond, &out.RateLimitWait, &out.MaxRateLimitRetries)
	return out
}

// apply overwrites the provider defaults with the values set in h. The
// section was validated, so parse errors cannot happen here.
func (h HTTPConfig) apply(timeout *time.Duration, rps *float64, wait *time.Duration, retries *int) {
	if d, _ := duration(h.Timeout); d > 0 {
		*timeout = d
	}
	if h.RequestsPerSecond > 0 {
		*rps = h.RequestsPerSecond
	}
	if d, _ := duration(h.RateLimitWait); d > 0 {
		*wait = d
	}
	if h.MaxRateLimitRetries > 0 {
		*retries = h.MaxRateLimitRetries
	}
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Dir: cache.DefaultDir,
		},
		Journal: JournalConfig{
			Type: "sqlite",
			Path: "./barfetch.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Binance: BinanceConfig{
			BaseURL: binance.BaseURL,
			HTTP: HTTPConfig{
				Timeout:           "30s",
				RequestsPerSecond: 10,
				RateLimitWait:     "60s",
			},
		},
		Alpaca: AlpacaConfig{
			DataURL:    alpaca.DataURL,
			TradingURL: alpaca.TradingURL,
			HTTP: HTTPConfig{
				Timeout:           "30s",
				RequestsPerSecond: 3,
				RateLimitWait:     "60s",
			},
		},
		Polygon: PolygonConfig{
			BaseURL: polygon.BaseURL,
			HTTP: HTTPConfig{
				Timeout:       "30s",
				RateLimitWait: "60s",
			},
		},
	}
}

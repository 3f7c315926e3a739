package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// UpstreamConfig holds market-data API configuration
type UpstreamConfig struct {
	EndpointURL    string        `mapstructure:"endpoint_url"`
	TokenAddress   string        `mapstructure:"token_address"`
	Source         string        `mapstructure:"source"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// CacheConfig holds cache behavior configuration: the volatility-tiered poll
// intervals, the thresholds that select between them, and the trailing window
// the volatility estimate is computed over.
type CacheConfig struct {
	Key string `mapstructure:"key"`

	HighVolatilityInterval   time.Duration `mapstructure:"high_volatility_interval"`
	MediumVolatilityInterval time.Duration `mapstructure:"medium_volatility_interval"`
	LowVolatilityInterval    time.Duration `mapstructure:"low_volatility_interval"`
	StaleInterval            time.Duration `mapstructure:"stale_interval"`

	HighVolatilityThreshold   float64 `mapstructure:"high_volatility_threshold"`
	MediumVolatilityThreshold float64 `mapstructure:"medium_volatility_threshold"`
	LowVolatilityThreshold    float64 `mapstructure:"low_volatility_threshold"`

	VolatilityWindow time.Duration `mapstructure:"volatility_window"`
	MaxWindowSamples int           `mapstructure:"max_window_samples"`
}

// StorageConfig holds storage and retention configuration
type StorageConfig struct {
	DBPath        string        `mapstructure:"db_path"`
	RetentionDays int           `mapstructure:"retention_days"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("TOKENPULSE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Cache.Key == "" {
		cfg.Cache.Key = "token_metrics_" + cfg.Upstream.TokenAddress
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Upstream defaults
	v.SetDefault("upstream.source", "dexscreener")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("upstream.max_retries", 3)
	v.SetDefault("upstream.retry_delay_base", "1s")

	// Cache defaults: four poll tiers, fastest under high volatility
	v.SetDefault("cache.high_volatility_interval", "15s")
	v.SetDefault("cache.medium_volatility_interval", "30s")
	v.SetDefault("cache.low_volatility_interval", "60s")
	v.SetDefault("cache.stale_interval", "300s")
	v.SetDefault("cache.high_volatility_threshold", 10.0)
	v.SetDefault("cache.medium_volatility_threshold", 5.0)
	v.SetDefault("cache.low_volatility_threshold", 1.0)
	v.SetDefault("cache.volatility_window", "1h")
	v.SetDefault("cache.max_window_samples", 100)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/tokenpulse.db")
	v.SetDefault("storage.retention_days", 30)
	v.SetDefault("storage.sweep_interval", "24h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Upstream config
	if c.Upstream.EndpointURL == "" {
		return fmt.Errorf("upstream.endpoint_url is required")
	}
	if c.Upstream.TokenAddress == "" {
		return fmt.Errorf("upstream.token_address is required")
	}
	if c.Upstream.Timeout < time.Second {
		return fmt.Errorf("upstream.timeout must be at least 1 second")
	}
	if c.Upstream.MaxRetries < 1 {
		return fmt.Errorf("upstream.max_retries must be at least 1")
	}
	if c.Upstream.RetryDelayBase <= 0 {
		return fmt.Errorf("upstream.retry_delay_base must be positive")
	}

	// Validate Cache config
	if c.Cache.HighVolatilityInterval < time.Second {
		return fmt.Errorf("cache.high_volatility_interval must be at least 1 second")
	}
	if c.Cache.MediumVolatilityInterval <= c.Cache.HighVolatilityInterval {
		return fmt.Errorf("cache.medium_volatility_interval must be greater than cache.high_volatility_interval")
	}
	if c.Cache.LowVolatilityInterval <= c.Cache.MediumVolatilityInterval {
		return fmt.Errorf("cache.low_volatility_interval must be greater than cache.medium_volatility_interval")
	}
	if c.Cache.StaleInterval <= c.Cache.LowVolatilityInterval {
		return fmt.Errorf("cache.stale_interval must be greater than cache.low_volatility_interval")
	}
	if c.Cache.LowVolatilityThreshold <= 0 {
		return fmt.Errorf("cache.low_volatility_threshold must be positive")
	}
	if c.Cache.MediumVolatilityThreshold <= c.Cache.LowVolatilityThreshold {
		return fmt.Errorf("cache.medium_volatility_threshold must be greater than cache.low_volatility_threshold")
	}
	if c.Cache.HighVolatilityThreshold <= c.Cache.MediumVolatilityThreshold {
		return fmt.Errorf("cache.high_volatility_threshold must be greater than cache.medium_volatility_threshold")
	}
	if c.Cache.VolatilityWindow < time.Minute {
		return fmt.Errorf("cache.volatility_window must be at least 1 minute")
	}
	if c.Cache.MaxWindowSamples < 2 {
		return fmt.Errorf("cache.max_window_samples must be at least 2")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.RetentionDays < 1 {
		return fmt.Errorf("storage.retention_days must be at least 1")
	}
	if c.Storage.SweepInterval < time.Minute {
		return fmt.Errorf("storage.sweep_interval must be at least 1 minute")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

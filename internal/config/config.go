// internal/config/config.go
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	DBURL    string `mapstructure:"DB_URL"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	// Puller settings.
	MirrorDir        string        `mapstructure:"MIRROR_DIR"`
	PullPollInterval time.Duration `mapstructure:"PULL_POLL_INTERVAL"`
	PullConcurrency  int           `mapstructure:"PULL_CONCURRENCY"`
	PullMaxAttempts  int           `mapstructure:"PULL_MAX_ATTEMPTS"`
	DefaultSyncEvery time.Duration `mapstructure:"DEFAULT_SYNC_EVERY"`
	PullFetchTimeout time.Duration `mapstructure:"PULL_FETCH_TIMEOUT"`

	// Ingestion limits.
	MaxBatchSize   int     `mapstructure:"MAX_BATCH_SIZE"`
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// SealKeyHex is the 32-byte hex key used to seal stored remote tokens.
	SealKeyHex string   `mapstructure:"SEAL_KEY"`
	SealKey    [32]byte `mapstructure:"-"`
}

// LoadConfig reads configuration from file and/or environment variables,
// validating eagerly so misconfiguration fails at startup.
func LoadConfig() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("MIRROR_DIR", "/var/lib/commitsync/mirrors")
	viper.SetDefault("PULL_POLL_INTERVAL", "30s")
	viper.SetDefault("PULL_CONCURRENCY", 5)
	viper.SetDefault("PULL_MAX_ATTEMPTS", 3)
	viper.SetDefault("DEFAULT_SYNC_EVERY", "1h")
	viper.SetDefault("PULL_FETCH_TIMEOUT", "5m")
	viper.SetDefault("MAX_BATCH_SIZE", 1000)
	viper.SetDefault("RATE_LIMIT_RPS", 100.0/60.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound.
	_ = viper.BindEnv("DB_URL")
	_ = viper.BindEnv("SEAL_KEY")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.SealKeyHex == "" {
		return nil, errors.New("SEAL_KEY is a required configuration field")
	}
	raw, err := hex.DecodeString(cfg.SealKeyHex)
	if err != nil || len(raw) != 32 {
		return nil, errors.New("SEAL_KEY must be 64 hex characters (32 bytes)")
	}
	copy(cfg.SealKey[:], raw)

	if cfg.MaxBatchSize < 1 {
		return nil, fmt.Errorf("MAX_BATCH_SIZE must be positive, got %d", cfg.MaxBatchSize)
	}
	if cfg.PullConcurrency < 1 {
		return nil, fmt.Errorf("PULL_CONCURRENCY must be positive, got %d", cfg.PullConcurrency)
	}
	if cfg.PullMaxAttempts < 1 {
		return nil, fmt.Errorf("PULL_MAX_ATTEMPTS must be positive, got %d", cfg.PullMaxAttempts)
	}

	return &cfg, nil
}

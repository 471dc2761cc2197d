package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/siglatools/sigla/internal/logging"
	"github.com/siglatools/sigla/internal/storage"
)

// Config represents the sigla configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Lock     LockConfig     `mapstructure:"lock"`
	Server   ServerConfig   `mapstructure:"server"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LockConfig represents the optional Redis load lock. An empty RedisURL
// disables locking.
type LockConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ServerConfig represents HTTP intake configuration
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Enabled reports whether a Redis lock was configured
func (l LockConfig) Enabled() bool {
	return l.RedisURL != ""
}

// Logging converts the log section for the logging package
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Development: c.Log.Development}
}

// Load loads the configuration from path, or from sigla.yml / sigla.yaml in
// the working directory when path is empty
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("database.url", "memory://")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("lock.redis_url", "")
	v.SetDefault("lock.key", "sigla:load")
	v.SetDefault("lock.ttl", "10m")
	v.SetDefault("server.addr", ":8080")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sigla")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// SIGLA_DATABASE_URL, SIGLA_LOG_LEVEL, ...
	v.SetEnvPrefix("sigla")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Plain DATABASE_URL is honored when the prefixed variable is unset
	if err := v.BindEnv("database.url", "SIGLA_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := storage.Detect(cfg.Database.URL); err != nil {
		return fmt.Errorf("database.url: %w", err)
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.Lock.Enabled() {
		if cfg.Lock.Key == "" {
			return fmt.Errorf("lock.key must not be empty when lock.redis_url is set")
		}
		if cfg.Lock.TTL <= 0 {
			return fmt.Errorf("lock.ttl must be greater than 0, got: %s", cfg.Lock.TTL)
		}
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	return nil
}

// Package config provides configuration loading for battled.
//
// Configuration is assembled from hardcoded defaults, an optional YAML file
// and BATTLED_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete battled configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Snapshots SnapshotConfig  `koanf:"snapshots"`
	Redis     RedisConfig     `koanf:"redis"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimit       float64       `koanf:"rate_limit"` // predictions per second, 0 disables
	RateBurst       int           `koanf:"rate_burst"`
}

// SnapshotConfig points at the two artifacts loaded at startup.
type SnapshotConfig struct {
	ModelPath   string `koanf:"model_path"`
	StatsPath   string `koanf:"stats_path"`
	StatsSource Source `koanf:"stats_source"`
}

// RedisConfig holds the connection used when the attribute table lives in Redis.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	DB        int    `koanf:"db"`
	Password  Secret `koanf:"password"`
	KeyPrefix string `koanf:"key_prefix"`
}

// LoggingConfig holds the user-facing subset of logging options.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"` // "grpc" or "http/protobuf"
	Insecure       bool     `koanf:"insecure"`
	ServiceName    string   `koanf:"service_name"`
	ServiceVersion string   `koanf:"service_version"`
	SamplingRate   float64  `koanf:"sampling_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Rate limit is negative, or positive with a burst below 1
//   - Model path is empty
//   - Stats source is unknown, or its location is missing
//   - Logging format is not json or console
//   - Telemetry is enabled without endpoint or service name
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative: %v", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("rate burst must be >= 1 when rate limit is set, got %d", c.Server.RateBurst)
	}

	if c.Snapshots.ModelPath == "" {
		return errors.New("snapshots.model_path is required")
	}
	switch c.Snapshots.StatsSource {
	case SourceFile:
		if c.Snapshots.StatsPath == "" {
			return errors.New("snapshots.stats_path is required when stats_source is file")
		}
	case SourceRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required when stats_source is redis")
		}
	default:
		return fmt.Errorf("unknown stats source %q (must be %q or %q)", c.Snapshots.StatsSource, SourceFile, SourceRedis)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry endpoint required when telemetry is enabled")
		}
		if c.Telemetry.ServiceName == "" {
			return errors.New("service name required when telemetry is enabled")
		}
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = int(cfg.Server.RateLimit) + 1
	}

	if cfg.Snapshots.ModelPath == "" {
		cfg.Snapshots.ModelPath = "model.json"
	}
	if cfg.Snapshots.StatsSource == "" {
		cfg.Snapshots.StatsSource = SourceFile
	}
	if cfg.Snapshots.StatsSource == SourceFile && cfg.Snapshots.StatsPath == "" {
		cfg.Snapshots.StatsPath = "stats.json"
	}

	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "battled:"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "battled"
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "0.1.0"
	}
	if cfg.Telemetry.SamplingRate == 0 {
		cfg.Telemetry.SamplingRate = 1.0
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = Duration(15 * time.Second)
	}
}

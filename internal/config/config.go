// Package config provides application configuration with
// defaults -> environment -> file precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application settings.
type Config struct {
	HTTP      *HTTPConfig      `yaml:"http"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
	Database  *DatabaseConfig  `yaml:"database"`
	Advice    *AdviceConfig    `yaml:"advice"`
	Log       *LogConfig       `yaml:"log"`
}

// HTTPConfig configures the REST/WebSocket HTTP server.
type HTTPConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// WebSocketConfig configures the realtime transport.
type WebSocketConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	BufferSize   int           `yaml:"buffer_size"`
}

// DatabaseConfig configures the sqlite archive store.
type DatabaseConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// AdviceConfig configures the advice chat core. SessionRetention bounds how
// long ended sessions stay in memory before being archived and evicted;
// zero disables the sweep and ended sessions accumulate for the process
// lifetime.
type AdviceConfig struct {
	SessionRetention time.Duration `yaml:"session_retention"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Database: &DatabaseConfig{
			Path:    "./tanktalk.db",
			Timeout: 30 * time.Second,
		},
		Advice: &AdviceConfig{
			SessionRetention: 24 * time.Hour,
			SweepInterval:    5 * time.Minute,
			TokenTTL:         30 * 24 * time.Hour,
		},
		Log: &LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("http configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("websocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket timeouts must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("websocket buffer size must be positive")
	}
	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.Advice == nil {
		return fmt.Errorf("advice configuration is required")
	}
	if c.Advice.SessionRetention < 0 {
		return fmt.Errorf("advice session retention cannot be negative")
	}
	if c.Advice.SweepInterval <= 0 {
		return fmt.Errorf("advice sweep interval must be positive")
	}
	if c.Advice.TokenTTL <= 0 {
		return fmt.Errorf("advice token TTL must be positive")
	}
	if c.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	return nil
}

// LoadFromEnv returns defaults overridden by TANKTALK_* environment
// variables. Unparseable values fall back to the default.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if host := os.Getenv("TANKTALK_HTTP_HOST"); host != "" {
		cfg.HTTP.Host = host
	}
	if port := os.Getenv("TANKTALK_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.HTTP.Port = p
		}
	}
	setDuration(&cfg.HTTP.ReadTimeout, "TANKTALK_HTTP_READ_TIMEOUT")
	setDuration(&cfg.HTTP.WriteTimeout, "TANKTALK_HTTP_WRITE_TIMEOUT")

	setDuration(&cfg.WebSocket.PingInterval, "TANKTALK_WS_PING_INTERVAL")
	setDuration(&cfg.WebSocket.ReadTimeout, "TANKTALK_WS_READ_TIMEOUT")
	setDuration(&cfg.WebSocket.WriteTimeout, "TANKTALK_WS_WRITE_TIMEOUT")
	if size := os.Getenv("TANKTALK_WS_BUFFER_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.WebSocket.BufferSize = n
		}
	}

	if path := os.Getenv("TANKTALK_DATABASE_PATH"); path != "" {
		cfg.Database.Path = path
	}
	setDuration(&cfg.Database.Timeout, "TANKTALK_DATABASE_TIMEOUT")

	if retention := os.Getenv("TANKTALK_SESSION_RETENTION"); retention != "" {
		if d, err := time.ParseDuration(retention); err == nil && d >= 0 {
			cfg.Advice.SessionRetention = d
		}
	}
	setDuration(&cfg.Advice.SweepInterval, "TANKTALK_SWEEP_INTERVAL")
	setDuration(&cfg.Advice.TokenTTL, "TANKTALK_TOKEN_TTL")

	if level := os.Getenv("TANKTALK_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("TANKTALK_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}

	return cfg
}

func setDuration(dst *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

// configFile mirrors Config with string durations for YAML parsing.
type configFile struct {
	HTTP *struct {
		Host         string `yaml:"host"`
		Port         int    `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"http"`
	WebSocket *struct {
		PingInterval string `yaml:"ping_interval"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
		BufferSize   int    `yaml:"buffer_size"`
	} `yaml:"websocket"`
	Database *struct {
		Path    string `yaml:"path"`
		Timeout string `yaml:"timeout"`
	} `yaml:"database"`
	Advice *struct {
		SessionRetention string `yaml:"session_retention"`
		SweepInterval    string `yaml:"sweep_interval"`
		TokenTTL         string `yaml:"token_ttl"`
	} `yaml:"advice"`
	Log *struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			cfg.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			cfg.HTTP.Port = file.HTTP.Port
		}
		parseDuration(&cfg.HTTP.ReadTimeout, file.HTTP.ReadTimeout)
		parseDuration(&cfg.HTTP.WriteTimeout, file.HTTP.WriteTimeout)
	}
	if file.WebSocket != nil {
		parseDuration(&cfg.WebSocket.PingInterval, file.WebSocket.PingInterval)
		parseDuration(&cfg.WebSocket.ReadTimeout, file.WebSocket.ReadTimeout)
		parseDuration(&cfg.WebSocket.WriteTimeout, file.WebSocket.WriteTimeout)
		if file.WebSocket.BufferSize > 0 {
			cfg.WebSocket.BufferSize = file.WebSocket.BufferSize
		}
	}
	if file.Database != nil {
		if file.Database.Path != "" {
			cfg.Database.Path = file.Database.Path
		}
		parseDuration(&cfg.Database.Timeout, file.Database.Timeout)
	}
	if file.Advice != nil {
		if file.Advice.SessionRetention != "" {
			if d, err := time.ParseDuration(file.Advice.SessionRetention); err == nil && d >= 0 {
				cfg.Advice.SessionRetention = d
			}
		}
		parseDuration(&cfg.Advice.SweepInterval, file.Advice.SweepInterval)
		parseDuration(&cfg.Advice.TokenTTL, file.Advice.TokenTTL)
	}
	if file.Log != nil {
		if file.Log.Level != "" {
			cfg.Log.Level = file.Log.Level
		}
		if file.Log.Format != "" {
			cfg.Log.Format = file.Log.Format
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

func parseDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}

// Load returns configuration with file > environment > defaults precedence.
// A missing or broken file is not fatal; environment and defaults still
// apply.
func Load(path string) *Config {
	cfg := LoadFromEnv()
	if path != "" {
		if fileCfg, err := LoadFromFile(path); err == nil {
			cfg = fileCfg
		}
	}
	return cfg
}

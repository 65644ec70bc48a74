// Package config loads and validates the console's configuration from an
// optional YAML file with environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the root configuration of the console service.
type Config struct {
	Environment Environment    `yaml:"environment"`
	Server      ServerConfig   `yaml:"server"`
	Upstream    UpstreamConfig `yaml:"upstream"`
	Session     SessionConfig  `yaml:"session"`
	Editor      EditorConfig   `yaml:"editor"`
	Auth        AuthConfig     `yaml:"auth"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// UpstreamConfig points at the NocturneScope API the console fronts.
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig controls console session lifetime and cookie behavior.
type SessionConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

// EditorConfig holds the topology editor's scheduling knobs. These are the
// hot-reloadable part of the configuration: operators tune poll cadence
// against upstream load without restarting open editor sessions.
type EditorConfig struct {
	DevicePollInterval time.Duration `yaml:"device_poll_interval"`
	AlertPollInterval  time.Duration `yaml:"alert_poll_interval"`
	AutosaveDelay      time.Duration `yaml:"autosave_delay"`
	LivenessWindow     time.Duration `yaml:"liveness_window"`
	AutoDetectGateways bool          `yaml:"auto_detect_gateways"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

// AuthConfig holds credential-endpoint protections.
type AuthConfig struct {
	LoginAttemptsPerMinute int `yaml:"login_attempts_per_minute"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		Environment: Development,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
		},
		Upstream: UpstreamConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			TTL:          24 * time.Hour,
			SecureCookie: false,
		},
		Editor: EditorConfig{
			DevicePollInterval: 5 * time.Second,
			AlertPollInterval:  3 * time.Second,
			AutosaveDelay:      2 * time.Second,
			LivenessWindow:     300 * time.Second,
			AutoDetectGateways: true,
			SessionIdleTimeout: 30 * time.Minute,
		},
		Auth: AuthConfig{
			LoginAttemptsPerMinute: 10,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONSOLE_CONFIG_FILE (or ./console.yaml if present), then environment
// variables.
func Load() (Config, error) {
	cfg := Default()

	path := ConfigFilePath()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ConfigFilePath resolves the YAML file to load, or "" when running on
// defaults and environment variables alone.
func ConfigFilePath() string {
	if path := os.Getenv("CONSOLE_CONFIG_FILE"); path != "" {
		return path
	}
	if _, err := os.Stat("console.yaml"); err == nil {
		return "console.yaml"
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = Environment(v)
	}
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	cfg.Upstream.Timeout = getEnvDuration("UPSTREAM_TIMEOUT", cfg.Upstream.Timeout)
	cfg.Session.TTL = getEnvDuration("SESSION_TTL", cfg.Session.TTL)
	cfg.Session.SecureCookie = getEnvBool("SESSION_SECURE_COOKIE", cfg.Session.SecureCookie)
	cfg.Editor.DevicePollInterval = getEnvDuration("EDITOR_DEVICE_POLL_INTERVAL", cfg.Editor.DevicePollInterval)
	cfg.Editor.AlertPollInterval = getEnvDuration("EDITOR_ALERT_POLL_INTERVAL", cfg.Editor.AlertPollInterval)
	cfg.Editor.AutosaveDelay = getEnvDuration("EDITOR_AUTOSAVE_DELAY", cfg.Editor.AutosaveDelay)
	cfg.Editor.LivenessWindow = getEnvDuration("EDITOR_LIVENESS_WINDOW", cfg.Editor.LivenessWindow)
	cfg.Editor.AutoDetectGateways = getEnvBool("EDITOR_AUTO_DETECT_GATEWAYS", cfg.Editor.AutoDetectGateways)
	cfg.Editor.SessionIdleTimeout = getEnvDuration("EDITOR_SESSION_IDLE_TIMEOUT", cfg.Editor.SessionIdleTimeout)
	cfg.Auth.LoginAttemptsPerMinute = getEnvInt("LOGIN_ATTEMPTS_PER_MINUTE", cfg.Auth.LoginAttemptsPerMinute)
}

// Validate checks the configuration for values that would break at runtime.
func (c Config) Validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base URL is required")
	}
	if c.Editor.DevicePollInterval <= 0 || c.Editor.AlertPollInterval <= 0 {
		return fmt.Errorf("editor poll intervals must be positive")
	}
	if c.Editor.AutosaveDelay <= 0 {
		return fmt.Errorf("editor autosave delay must be positive")
	}
	if c.Editor.LivenessWindow <= 0 {
		return fmt.Errorf("editor liveness window must be positive")
	}
	if c.Environment == Production && !c.Session.SecureCookie {
		return fmt.Errorf("secure session cookies are required in production")
	}
	return nil
}

// IsDevelopment returns true in the development environment
func (c Config) IsDevelopment() bool {
	return c.Environment == Development
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

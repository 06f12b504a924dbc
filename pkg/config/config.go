package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-local-server/pkg/logging"
)

// EnvPrefix is the prefix of all environment overrides, e.g. LOCALSRV_LISTENER_PORT
const EnvPrefix = "LOCALSRV"

// Network sources
const (
	NetworkSourcePoll = "poll"
	NetworkSourcePush = "push"
)

// Config represents the application configuration
type Config struct {
	Control   ControlConfig   `yaml:"control" envconfig:"CONTROL"`
	Listener  ListenerConfig  `yaml:"listener" envconfig:"LISTENER"`
	Network   NetworkConfig   `yaml:"network" envconfig:"NETWORK"`
	Auth      AuthConfig      `yaml:"auth" envconfig:"AUTH"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Logging   logging.Config  `yaml:"logging" envconfig:"LOGGING"`
}

// ControlConfig contains the control API server configuration
type ControlConfig struct {
	Host string     `yaml:"host" envconfig:"HOST"`
	Port int        `yaml:"port" envconfig:"PORT"`
	CORS CORSConfig `yaml:"cors" envconfig:"CORS"`
}

// CORSConfig contains CORS settings for the control API
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `yaml:"allowed_methods" envconfig:"ALLOWED_METHODS"`
	AllowedHeaders   []string `yaml:"allowed_headers" envconfig:"ALLOWED_HEADERS"`
	AllowCredentials bool     `yaml:"allow_credentials" envconfig:"ALLOW_CREDENTIALS"`
	MaxAge           int      `yaml:"max_age" envconfig:"MAX_AGE"` // seconds
}

// ListenerConfig contains the user-facing listener settings.
// Port is kept as text: it is validated when the listener starts.
type ListenerConfig struct {
	BindHost        string `yaml:"bind_host" envconfig:"BIND_HOST"`
	Port            string `yaml:"port" envconfig:"PORT"`
	RunInBackground bool   `yaml:"run_in_background" envconfig:"RUN_IN_BACKGROUND"`
}

// NetworkConfig controls how network changes are observed
type NetworkConfig struct {
	// Source is "poll" (watch a local interface) or "push" (events via the control API)
	Source string `yaml:"source" envconfig:"SOURCE"`
	// Interface is the interface to watch; empty picks the first non-loopback one
	Interface      string `yaml:"interface" envconfig:"INTERFACE"`
	PollIntervalMs int    `yaml:"poll_interval_ms" envconfig:"POLL_INTERVAL_MS"`
}

// AuthConfig contains control API token configuration
type AuthConfig struct {
	Secret      string `yaml:"secret" envconfig:"SECRET"`
	Issuer      string `yaml:"issuer" envconfig:"ISSUER"`
	ExpiryHours int    `yaml:"expiry_hours" envconfig:"EXPIRY_HOURS"`
}

// RateLimitConfig limits how often the listener can be toggled
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" envconfig:"ENABLED"`
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst             int     `yaml:"burst" envconfig:"BURST"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, that's ok - we'll use defaults and env vars
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Control: ControlConfig{
			Host: "127.0.0.1",
			Port: 8090,
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
				MaxAge:         12 * 60 * 60,
			},
		},
		Listener: ListenerConfig{
			BindHost:        "0.0.0.0",
			Port:            "8080",
			RunInBackground: true,
		},
		Network: NetworkConfig{
			Source:         NetworkSourcePoll,
			PollIntervalMs: 2000,
		},
		Auth: AuthConfig{
			Issuer:      "local-server",
			ExpiryHours: 24,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Validate validates the control plane configuration. The listener section
// is checked by the coordinator before every start, not here.
func (c *Config) Validate() error {
	if c.Control.Port < 1 || c.Control.Port > 65535 {
		return fmt.Errorf("invalid control port: %d", c.Control.Port)
	}

	switch c.Network.Source {
	case NetworkSourcePoll:
		if c.Network.PollIntervalMs <= 0 {
			return fmt.Errorf("poll_interval_ms must be positive when polling")
		}
	case NetworkSourcePush:
	default:
		return fmt.Errorf("invalid network source: %s (must be poll or push)", c.Network.Source)
	}

	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("rate limit needs a positive requests_per_second and burst")
	}

	return nil
}

// Address returns the control server address
func (c *ControlConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PollInterval returns the network poll interval
func (c *NetworkConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// TokenExpiry returns the lifetime of issued control tokens
func (c *AuthConfig) TokenExpiry() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

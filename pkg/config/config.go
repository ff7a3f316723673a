package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for blueprint-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Vision provider configuration
	Anthropic AnthropicConfig `yaml:"anthropic"`

	// Circuit breaker guarding the vision-provider call
	Breaker BreakerConfig `yaml:"breaker"`

	// Annotation renderer capability
	Renderer RendererConfig `yaml:"renderer"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port               int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User               string `yaml:"user" env:"PGUSER" env-default:"plumbline"`
	Password           string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database           string `yaml:"database" env:"PGDATABASE" env-default:"blueprint_engine"`
	MaxConnections     int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode            string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	SaveTimeoutSeconds int    `yaml:"save_timeout_seconds" env:"PGSAVE_TIMEOUT_SECONDS" env-default:"30"`
}

// AnthropicConfig holds configuration for the vision provider.
type AnthropicConfig struct {
	APIKey    string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	Model     string `yaml:"model" env:"ANTHROPIC_MODEL" env-default:"claude-3-5-sonnet-20241022"`
	MaxTokens int    `yaml:"max_tokens" env:"ANTHROPIC_MAX_TOKENS" env-default:"4096"`
}

// IsConfigured returns true if provider credentials are present. The
// analysis pipeline refuses to run without them.
func (c *AnthropicConfig) IsConfigured() bool {
	return c.APIKey != ""
}

// BreakerConfig holds circuit breaker thresholds for the vision call.
type BreakerConfig struct {
	FailureThreshold        int `yaml:"failure_threshold" env:"BREAKER_FAILURE_THRESHOLD" env-default:"5"`
	SuccessThreshold        int `yaml:"success_threshold" env:"BREAKER_SUCCESS_THRESHOLD" env-default:"3"`
	ResetTimeoutSeconds     int `yaml:"reset_timeout_seconds" env:"BREAKER_RESET_TIMEOUT_SECONDS" env-default:"120"`
	CallTimeoutSeconds      int `yaml:"call_timeout_seconds" env:"BREAKER_CALL_TIMEOUT_SECONDS" env-default:"120"`
	MonitoringPeriodSeconds int `yaml:"monitoring_period_seconds" env:"BREAKER_MONITORING_PERIOD_SECONDS" env-default:"300"`
}

// ResetTimeout returns the reset timeout as a duration.
func (c *BreakerConfig) ResetTimeout() time.Duration {
	return time.Duration(c.ResetTimeoutSeconds) * time.Second
}

// CallTimeout returns the per-call deadline as a duration.
func (c *BreakerConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// MonitoringPeriod returns the rolling failure window as a duration.
func (c *BreakerConfig) MonitoringPeriod() time.Duration {
	return time.Duration(c.MonitoringPeriodSeconds) * time.Second
}

// RendererConfig controls the annotation rendering capability. When disabled
// (or when the configured font cannot be loaded) annotation requests fail
// fast instead of degrading silently.
type RendererConfig struct {
	Enabled  bool   `yaml:"enabled" env:"RENDERER_ENABLED" env-default:"true"`
	FontPath string `yaml:"font_path" env:"RENDERER_FONT_PATH" env-default:""`
}

// Load reads configuration from config.yaml with environment variable
// overrides. When config.yaml does not exist, configuration comes from
// environment variables alone. The version parameter is injected at build
// time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// SaveTimeout returns the persistence transaction deadline as a duration.
func (c *DatabaseConfig) SaveTimeout() time.Duration {
	return time.Duration(c.SaveTimeoutSeconds) * time.Second
}

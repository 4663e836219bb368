// Package config provides layered configuration for Foreman: built-in
// defaults, an optional YAML config file, and FOREMAN_* environment
// variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/forgecrew/foreman/internal/constants"
	"github.com/forgecrew/foreman/internal/domain"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
	"github.com/forgecrew/foreman/internal/retry"
)

// envPrefix is the environment variable prefix (FOREMAN_ENGINE_TICK_INTERVAL
// overrides engine.tick_interval).
const envPrefix = "FOREMAN"

// Config is the full Foreman configuration.
type Config struct {
	// Home is the data directory (state, logs, backups). Empty means
	// ~/.foreman.
	Home string `mapstructure:"home"`

	// Engine configures the control loop.
	Engine EngineConfig `mapstructure:"engine"`

	// Retry configures the retry policy used for agent dispatch.
	Retry RetryConfig `mapstructure:"retry"`

	// Checkpoints configures the checkpoint ring buffer.
	Checkpoints CheckpointConfig `mapstructure:"checkpoints"`

	// CatalogPath optionally replaces the built-in phase catalog with a YAML
	// file.
	CatalogPath string `mapstructure:"catalog_path"`

	// Agents maps role name to the shell command the role's agent runs per
	// task. An absent or empty command puts the agent in dry-run mode.
	Agents map[string]string `mapstructure:"agents"`

	// Log configures logging output.
	Log LogConfig `mapstructure:"log"`
}

// EngineConfig configures the control loop.
type EngineConfig struct {
	// TickInterval is the scheduler tick interval.
	TickInterval time.Duration `mapstructure:"tick_interval"`

	// AutoAdvance makes a completed phase advance immediately.
	AutoAdvance bool `mapstructure:"auto_advance"`

	// ErrorLogCap bounds the rolling in-state error log.
	ErrorLogCap int `mapstructure:"error_log_cap"`

	// MetricsAddr is the listen address for the Prometheus endpoint. Empty
	// disables the endpoint.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// RetryConfig configures the retry policy.
type RetryConfig struct {
	// MaxAttempts bounds total attempts including the first.
	MaxAttempts int `mapstructure:"max_attempts"`

	// Strategy is the backoff curve ("exponential" or "fixed").
	Strategy string `mapstructure:"strategy"`

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `mapstructure:"base_delay"`

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration `mapstructure:"max_delay"`

	// BreakerThreshold is the consecutive-failure count that opens a key's
	// circuit breaker.
	BreakerThreshold int `mapstructure:"breaker_threshold"`

	// BreakerResetTimeout is how long an open breaker waits before a
	// half-open trial.
	BreakerResetTimeout time.Duration `mapstructure:"breaker_reset_timeout"`
}

// CheckpointConfig configures the checkpoint ring buffer.
type CheckpointConfig struct {
	// Max bounds the number of held checkpoints.
	Max int `mapstructure:"max"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is the minimum level ("debug", "info", "warn", "error").
	Level string `mapstructure:"level"`

	// File enables rotated file output under <home>/logs when set.
	File string `mapstructure:"file"`

	// MaxSizeMB rotates the log file past this size.
	MaxSizeMB int `mapstructure:"max_size_mb"`

	// MaxBackups bounds rotated files kept.
	MaxBackups int `mapstructure:"max_backups"`

	// MaxAgeDays bounds rotated file age.
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// Load reads configuration from defaults, the config file, and the
// environment. An explicit path must exist; otherwise <home>/config.yaml and
// ./.foreman/config.yaml are tried and silently skipped when absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %q: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, constants.ForemanHome))
		}
		v.AddConfigPath(filepath.Join(".", constants.ForemanHome))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults seeds the built-in defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.tick_interval", constants.DefaultTickInterval)
	v.SetDefault("engine.auto_advance", true)
	v.SetDefault("engine.error_log_cap", constants.DefaultErrorLogCap)
	v.SetDefault("engine.metrics_addr", "")
	v.SetDefault("retry.max_attempts", constants.DefaultMaxAttempts)
	v.SetDefault("retry.strategy", string(retry.StrategyExponential))
	v.SetDefault("retry.base_delay", constants.DefaultBaseDelay)
	v.SetDefault("retry.max_delay", constants.DefaultMaxDelay)
	v.SetDefault("retry.breaker_threshold", constants.DefaultBreakerThreshold)
	v.SetDefault("retry.breaker_reset_timeout", constants.DefaultBreakerResetTimeout)
	v.SetDefault("checkpoints.max", constants.DefaultMaxCheckpoints)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("%w: engine.tick_interval must be positive", foremanerrors.ErrConfigInvalid)
	}
	if c.Checkpoints.Max < 1 {
		return fmt.Errorf("%w: checkpoints.max must be at least 1", foremanerrors.ErrConfigInvalid)
	}
	for name := range c.Agents {
		if _, err := domain.ParseRole(name); err != nil {
			return fmt.Errorf("%w: unknown agent role %q", foremanerrors.ErrConfigInvalid, name)
		}
	}
	return c.Policy().Validate()
}

// Policy builds the retry policy from the configuration.
func (c *Config) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.Retry.MaxAttempts
	p.Strategy = retry.Strategy(c.Retry.Strategy)
	p.BaseDelay = c.Retry.BaseDelay
	p.MaxDelay = c.Retry.MaxDelay
	p.BreakerThreshold = c.Retry.BreakerThreshold
	p.BreakerResetTimeout = c.Retry.BreakerResetTimeout
	return p
}

// AgentCommands maps the configured agent commands onto the role enum.
// Validate has already rejected unknown role names.
func (c *Config) AgentCommands() map[domain.Role]string {
	out := make(map[domain.Role]string, len(c.Agents))
	for name, command := range c.Agents {
		if role, err := domain.ParseRole(name); err == nil {
			out[role] = command
		}
	}
	return out
}

// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Callback CallbackConfig `mapstructure:"callback"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CallbackConfig defines the default result endpoint and its authentication.
type CallbackConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ResultPath     string `mapstructure:"result_path"`
	AuthHeader     string `mapstructure:"auth_header"`
	AuthToken      string `mapstructure:"auth_token"`
	AuthScheme     string `mapstructure:"auth_scheme"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	VerifyTLS      bool   `mapstructure:"verify_tls"`
}

// JobsConfig governs the worker pool and the simulated processing delay.
type JobsConfig struct {
	Workers         int `mapstructure:"workers"`
	DelayMinSeconds int `mapstructure:"delay_min_seconds"`
	DelayMaxSeconds int `mapstructure:"delay_max_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEFLECTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("callback.base_url", "https://localhost:3000")
	v.SetDefault("callback.result_path", "/api/beam_deflections/{beam_deflection_id}/async_result")
	v.SetDefault("callback.auth_header", "X-Async-Token")
	v.SetDefault("callback.auth_token", "12345678")
	v.SetDefault("callback.auth_scheme", "")
	v.SetDefault("callback.timeout_seconds", 10)
	// The companion service runs with a self-signed certificate in the lab
	// setup, so verification defaults off.
	v.SetDefault("callback.verify_tls", false)
	v.SetDefault("jobs.workers", 5)
	v.SetDefault("jobs.delay_min_seconds", 5)
	v.SetDefault("jobs.delay_max_seconds", 10)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be > 0")
	}
	if c.Callback.TimeoutSeconds <= 0 {
		return fmt.Errorf("callback.timeout_seconds must be > 0")
	}
	if c.Callback.AuthHeader == "" {
		return fmt.Errorf("callback.auth_header must not be empty")
	}
	return nil
}

// CallbackTimeout converts the configured timeout into a duration.
func (c Config) CallbackTimeout() time.Duration {
	return time.Duration(c.Callback.TimeoutSeconds) * time.Second
}

// DelayBounds returns the simulated delay window, clamped non-negative and
// ordered min ≤ max regardless of configuration order. Both the evaluator's
// draw and the admission estimate use this pair.
func (c Config) DelayBounds() (int, int) {
	lo, hi := c.Jobs.DelayMinSeconds, c.Jobs.DelayMaxSeconds
	if lo > hi {
		lo, hi = hi, lo
	}
	return max(0, lo), max(0, hi)
}

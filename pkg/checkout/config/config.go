// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

// Package config loads the library configuration from YAML files and
// CHECKOUT_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/innovationmech/checkout/pkg/checkout/retry"
	"github.com/innovationmech/checkout/pkg/checkout/session"
)

// Storage backends selectable via configuration.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// RetryConfig configures the retry coordinator. Durations are milliseconds.
type RetryConfig struct {
	MaxAttempts       int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelayMs       int `json:"base_delay_ms" yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMs        int `json:"max_delay_ms" yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	QuotaDelayFloorMs int `json:"quota_delay_floor_ms" yaml:"quota_delay_floor_ms" mapstructure:"quota_delay_floor_ms"`
}

// StorageConfig selects and configures the session persistence backend.
type StorageConfig struct {
	Backend    string               `json:"backend" yaml:"backend" mapstructure:"backend"`
	SQLitePath string               `json:"sqlite_path" yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Redis      *session.RedisConfig `json:"redis" yaml:"redis" mapstructure:"redis"`
}

// NetworkConfig configures the connectivity probe.
type NetworkConfig struct {
	// ProbeAddress is the host:port dialed to check connectivity.
	ProbeAddress string `json:"probe_address" yaml:"probe_address" mapstructure:"probe_address"`

	// ProbeTimeoutMs bounds the dial.
	ProbeTimeoutMs int `json:"probe_timeout_ms" yaml:"probe_timeout_ms" mapstructure:"probe_timeout_ms"`
}

// Config is the root configuration of the checkout library and CLI.
type Config struct {
	Retry   RetryConfig   `json:"retry" yaml:"retry" mapstructure:"retry"`
	Storage StorageConfig `json:"storage" yaml:"storage" mapstructure:"storage"`
	Network NetworkConfig `json:"network" yaml:"network" mapstructure:"network"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Retry: RetryConfig{
			MaxAttempts:       3,
			BaseDelayMs:       500,
			MaxDelayMs:        8000,
			QuotaDelayFloorMs: 5000,
		},
		Storage: StorageConfig{
			Backend:    StorageSQLite,
			SQLitePath: "checkout.db",
		},
		Network: NetworkConfig{
			ProbeAddress:   "1.1.1.1:443",
			ProbeTimeoutMs: 2000,
		},
	}
}

// Load reads the configuration from an optional YAML file and the
// environment. Environment variables use the CHECKOUT_ prefix with
// underscores for nesting, e.g. CHECKOUT_STORAGE_BACKEND=redis.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay_ms", defaults.Retry.BaseDelayMs)
	v.SetDefault("retry.max_delay_ms", defaults.Retry.MaxDelayMs)
	v.SetDefault("retry.quota_delay_floor_ms", defaults.Retry.QuotaDelayFloorMs)
	v.SetDefault("storage.backend", defaults.Storage.Backend)
	v.SetDefault("storage.sqlite_path", defaults.Storage.SQLitePath)
	v.SetDefault("network.probe_address", defaults.Network.ProbeAddress)
	v.SetDefault("network.probe_timeout_ms", defaults.Network.ProbeTimeoutMs)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.RetrySettings().Validate(); err != nil {
		return fmt.Errorf("invalid retry configuration: %w", err)
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path must be set for the sqlite backend")
		}
	case StorageRedis:
		if c.Storage.Redis == nil {
			return fmt.Errorf("storage.redis must be set for the redis backend")
		}
		if err := c.Storage.Redis.Validate(); err != nil {
			return fmt.Errorf("invalid redis configuration: %w", err)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Network.ProbeAddress == "" {
		return fmt.Errorf("network.probe_address must not be empty")
	}
	if c.Network.ProbeTimeoutMs <= 0 {
		return fmt.Errorf("network.probe_timeout_ms must be positive")
	}
	return nil
}

// RetrySettings converts the configured values into the retry package's
// configuration type.
func (c *Config) RetrySettings() *retry.Config {
	return &retry.Config{
		MaxAttempts:     c.Retry.MaxAttempts,
		BaseDelay:       time.Duration(c.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:        time.Duration(c.Retry.MaxDelayMs) * time.Millisecond,
		QuotaDelayFloor: time.Duration(c.Retry.QuotaDelayFloorMs) * time.Millisecond,
	}
}

// ProbeTimeout returns the connectivity probe timeout as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Network.ProbeTimeoutMs) * time.Millisecond
}

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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/checkout/pkg/checkout/session"
)

func TestLoad_Defaults(t *testing.T) {
	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, config.Retry.MaxAttempts)
	assert.Equal(t, 500, config.Retry.BaseDelayMs)
	assert.Equal(t, StorageSQLite, config.Storage.Backend)
	assert.Equal(t, "checkout.db", config.Storage.SQLitePath)
	assert.Equal(t, "1.1.1.1:443", config.Network.ProbeAddress)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retry:
  max_attempts: 5
  base_delay_ms: 100
  max_delay_ms: 2000
storage:
  backend: memory
network:
  probe_address: "example.com:443"
`), 0o644))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, config.Retry.MaxAttempts)
	assert.Equal(t, StorageMemory, config.Storage.Backend)
	assert.Equal(t, "example.com:443", config.Network.ProbeAddress)

	// Values absent from the file keep their defaults.
	assert.Equal(t, 5000, config.Retry.QuotaDelayFloorMs)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CHECKOUT_STORAGE_BACKEND", "memory")
	t.Setenv("CHECKOUT_RETRY_MAX_ATTEMPTS", "7")

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, config.Storage.Backend)
	assert.Equal(t, 7, config.Retry.MaxAttempts)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "etcd" }, true},
		{"sqlite without path", func(c *Config) { c.Storage.SQLitePath = "" }, true},
		{"redis without config", func(c *Config) { c.Storage.Backend = StorageRedis }, true},
		{"redis with config", func(c *Config) {
			c.Storage.Backend = StorageRedis
			c.Storage.Redis = session.DefaultRedisConfig()
		}, false},
		{"empty probe address", func(c *Config) { c.Network.ProbeAddress = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetrySettings(t *testing.T) {
	config := Default()
	settings := config.RetrySettings()
	assert.Equal(t, 3, settings.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, settings.BaseDelay)
	assert.Equal(t, 8*time.Second, settings.MaxDelay)
	assert.Equal(t, 5*time.Second, settings.QuotaDelayFloor)
}

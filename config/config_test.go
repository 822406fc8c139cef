// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/graphql", cfg.Server.Path)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, uint64(10000), cfg.Cache.Capacity)
	assert.Equal(t, "Store", cfg.Scope.Header)
	assert.True(t, cfg.Scope.Enabled)
	assert.Zero(t, cfg.Status.NotFoundGET)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("APQGATE_SERVER_ADDR", ":9999")
	t.Setenv("APQGATE_UPSTREAM_URL", "http://graphql:4000/graphql")
	t.Setenv("APQGATE_CACHE_BACKEND", "redis")
	t.Setenv("APQGATE_CACHE_TTL", "90s")
	t.Setenv("APQGATE_CACHE_FRONT_TTL", "0s")
	t.Setenv("APQGATE_REDIS_ADDR", "redis:6380")
	t.Setenv("APQGATE_REDIS_DB", "3")
	t.Setenv("APQGATE_SCOPE_ENABLED", "false")
	t.Setenv("APQGATE_STATUS_NOT_FOUND_POST", "404")
	t.Setenv("APQGATE_SCOPECONFIG_ENABLED", "true")
	t.Setenv("APQGATE_S3_PATH_STYLE", "true")
	t.Setenv("APQGATE_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("APQGATE_SERVER_MAX_BODY_BYTES", "4096")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "http://graphql:4000/graphql", cfg.Upstream.URL)
	assert.Equal(t, BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Zero(t, cfg.Cache.FrontTTL)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "apqgate:", cfg.Redis.Prefix)
	assert.False(t, cfg.Scope.Enabled)
	assert.Equal(t, 404, cfg.Status.NotFoundPOST)
	assert.Zero(t, cfg.Status.NotFoundGET)
	assert.True(t, cfg.ScopeConfig.Enabled)
	assert.Equal(t, time.Minute, cfg.ScopeConfig.TTL)
	assert.True(t, cfg.S3.PathStyle)
	assert.Equal(t, "http://minio:9000", cfg.S3.Endpoint)
	assert.Equal(t, int64(4096), cfg.Server.MaxBodyBytes)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("APQGATE_CACHE_BACKEND", "memcached")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memcached")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"postgres backend", func(c *Config) { c.Cache.Backend = BackendPostgres }, ""},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "" }, "cache.backend"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }, "ttl must not be negative"},
		{"relative path", func(c *Config) { c.Server.Path = "graphql" }, "server.path"},
		{"missing header", func(c *Config) { c.Scope.Header = "" }, "scope.header"},
		{"invalid default scope", func(c *Config) { c.Scope.Default = "a b" }, "scope.default"},
		{"scoping disabled skips scope checks", func(c *Config) {
			c.Scope.Enabled = false
			c.Scope.Header = ""
		}, ""},
		{"status out of range", func(c *Config) { c.Status.MismatchGET = 42 }, "status.mismatch_get"},
		{"status in range", func(c *Config) { c.Status.MismatchGET = 422 }, ""},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "server.max_body_bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

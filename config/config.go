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

// Package config loads the gateway configuration from an optional
// config.yaml and APQGATE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/apqgate/internal/apq"
)

// Cache backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config aggregates configuration for the application.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Scope       ScopeConfig       `mapstructure:"scope"`
	Status      apq.StatusCodes   `mapstructure:"status"`
	ScopeConfig ScopeConfigConfig `mapstructure:"scopeconfig"`
	S3          S3Config          `mapstructure:"s3"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	Path              string        `mapstructure:"path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
}

// UpstreamConfig points at the GraphQL server requests are proxied to.
// An empty URL selects the built-in engine.
type UpstreamConfig struct {
	URL string `mapstructure:"url"`
}

type CacheConfig struct {
	Backend  string        `mapstructure:"backend"`
	TTL      time.Duration `mapstructure:"ttl"`
	Capacity uint64        `mapstructure:"capacity"`
	// FrontTTL enables an in-memory front for the redis and postgres
	// backends. Zero disables it.
	FrontTTL time.Duration `mapstructure:"front_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type ScopeConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Header  string `mapstructure:"header"`
	Default string `mapstructure:"default"`
}

// ScopeConfigConfig enables per-scope settings stored in APQDB.
type ScopeConfigConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// S3Config is used when a manifest is read from s3://.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
	RoleARN   string `mapstructure:"role_arn"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			Path:              "/graphql",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			MaxBodyBytes:      1 << 20,
		},
		Cache: CacheConfig{
			Backend:  BackendMemory,
			Capacity: 10000,
			FrontTTL: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "apqgate:",
		},
		Scope: ScopeConfig{
			Enabled: true,
			Header:  "Store",
			Default: "default",
		},
		ScopeConfig: ScopeConfigConfig{
			TTL: time.Minute,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "APQGATE" and the dot character
// in keys is replaced by an underscore. For example, "cache.backend" becomes
// "APQGATE_CACHE_BACKEND".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("APQGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validScope = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Cache.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if c.Cache.TTL < 0 || c.Cache.FrontTTL < 0 {
		errs = append(errs, errors.New("cache: ttl must not be negative"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes: %d must be positive", c.Server.MaxBodyBytes))
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, fmt.Errorf("server.path: %q must start with /", c.Server.Path))
	}
	if c.Scope.Enabled {
		if c.Scope.Header == "" {
			errs = append(errs, errors.New("scope.header: must be set when scoping is enabled"))
		}
		if !validScope.MatchString(c.Scope.Default) {
			errs = append(errs, fmt.Errorf("scope.default: invalid scope %q", c.Scope.Default))
		}
	}
	for name, code := range map[string]int{
		"status.not_found_get":  c.Status.NotFoundGET,
		"status.not_found_post": c.Status.NotFoundPOST,
		"status.mismatch_get":   c.Status.MismatchGET,
		"status.mismatch_post":  c.Status.MismatchPOST,
	} {
		if code != 0 && (code < 100 || code > 599) {
			errs = append(errs, fmt.Errorf("%s: %d is not an HTTP status code", name, code))
		}
	}

	return errors.Join(errs...)
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}

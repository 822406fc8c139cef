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
package scopeconfig

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jellydator/ttlcache/v3"

	"github.com/cardinalhq/apqgate/apqdb"
	"github.com/cardinalhq/apqgate/internal/apq"
)

// DefaultScope is the scope whose values apply to every other scope.
const DefaultScope = "default"

// ScopeConfigQuerier defines the minimal database interface required by the service.
type ScopeConfigQuerier interface {
	GetScopeConfig(ctx context.Context, arg apqdb.GetScopeConfigParams) (json.RawMessage, error)
	UpsertScopeConfig(ctx context.Context, arg apqdb.UpsertScopeConfigParams) error
	DeleteScopeConfig(ctx context.Context, arg apqdb.DeleteScopeConfigParams) error
	ListScopeConfigs(ctx context.Context, scope string) ([]apqdb.ListScopeConfigsRow, error)
}

type configCacheKey struct {
	Scope string
	Key   string
}

// configCacheValue holds a cached config value or error.
type configCacheValue struct {
	Value json.RawMessage
	Err   error
}

// Service provides cached access to scope configuration.
type Service struct {
	querier      ScopeConfigQuerier
	cache        *ttlcache.Cache[configCacheKey, configCacheValue]
	defaultScope string
	static       apq.StatusCodes
}

var _ apq.StatusSource = (*Service)(nil)

// Option customizes a Service.
type Option func(*Service)

// WithDefaultScope changes the scope used as the shared fallback.
func WithDefaultScope(scope string) Option {
	return func(s *Service) {
		s.defaultScope = scope
	}
}

// WithStaticStatusCodes sets the status codes used when no scope overrides a field.
func WithStaticStatusCodes(codes apq.StatusCodes) Option {
	return func(s *Service) {
		s.static = codes
	}
}

// New creates a new Service with the given querier and cache TTL.
func New(querier ScopeConfigQuerier, ttl time.Duration, opts ...Option) *Service {
	cache := ttlcache.New(
		ttlcache.WithTTL[configCacheKey, configCacheValue](ttl),
		ttlcache.WithDisableTouchOnHit[configCacheKey, configCacheValue](),
	)
	go cache.Start()

	s := &Service{
		querier:      querier,
		cache:        cache,
		defaultScope: DefaultScope,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops the cache background goroutine and releases resources.
func (s *Service) Close() {
	s.cache.Stop()
}

// getConfigCached fetches a config value with caching. Misses are cached as
// pgx.ErrNoRows; any other error is returned uncached.
func (s *Service) getConfigCached(ctx context.Context, scope, key string) (json.RawMessage, error) {
	cacheKey := configCacheKey{Scope: scope, Key: key}

	var loadErr error
	loader := ttlcache.LoaderFunc[configCacheKey, configCacheValue](
		func(cache *ttlcache.Cache[configCacheKey, configCacheValue], k configCacheKey) *ttlcache.Item[configCacheKey, configCacheValue] {
			val, err := s.querier.GetScopeConfig(ctx, apqdb.GetScopeConfigParams{
				Scope: k.Scope,
				Key:   k.Key,
			})
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				loadErr = err
				return nil
			}
			return cache.Set(k, configCacheValue{
				Value: val,
				Err:   err,
			}, ttlcache.DefaultTTL)
		},
	)

	item := s.cache.Get(cacheKey, ttlcache.WithLoader(loader))
	if item == nil {
		return nil, loadErr
	}
	cached := item.Value()
	return cached.Value, cached.Err
}

// setConfig sets a config value and invalidates the cache.
func (s *Service) setConfig(ctx context.Context, scope, key string, value json.RawMessage) error {
	err := s.querier.UpsertScopeConfig(ctx, apqdb.UpsertScopeConfigParams{
		Scope: scope,
		Key:   key,
		Value: value,
	})
	if err != nil {
		return err
	}
	s.cache.Delete(configCacheKey{Scope: scope, Key: key})
	return nil
}

// deleteConfig deletes a config value and invalidates the cache.
func (s *Service) deleteConfig(ctx context.Context, scope, key string) error {
	err := s.querier.DeleteScopeConfig(ctx, apqdb.DeleteScopeConfigParams{
		Scope: scope,
		Key:   key,
	})
	if err != nil {
		return err
	}
	s.cache.Delete(configCacheKey{Scope: scope, Key: key})
	return nil
}

// ListConfigs lists all config keys/values for a scope.
func (s *Service) ListConfigs(ctx context.Context, scope string) ([]apqdb.ListScopeConfigsRow, error) {
	return s.querier.ListScopeConfigs(ctx, scope)
}

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

package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/apqgate/apqdb"
	"github.com/cardinalhq/apqgate/config"
	"github.com/cardinalhq/apqgate/internal/dbopen"
	"github.com/cardinalhq/apqgate/internal/querycache"
)

func withStoreOpener(t *testing.T, fn func(context.Context, ...dbopen.Options) (*apqdb.Store, error)) {
	t.Helper()
	orig := storeOpener
	storeOpener = fn
	t.Cleanup(func() { storeOpener = orig })
}

func TestOpenCache_Memory(t *testing.T) {
	cfg := config.DefaultConfig()
	d := newDeps(cfg)
	defer d.Close()

	cache, err := d.openCache(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &querycache.Memory{}, cache)
	assert.Empty(t, d.probes)
}

func TestOpenCache_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name     string
		frontTTL time.Duration
		want     any
	}{
		{"with front", time.Minute, &querycache.Tiered{}},
		{"without front", 0, &querycache.Redis{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Cache.Backend = config.BackendRedis
			cfg.Cache.FrontTTL = tt.frontTTL
			cfg.Redis.Addr = mr.Addr()

			d := newDeps(cfg)
			defer d.Close()

			ctx := context.Background()
			cache, err := d.openCache(ctx)
			require.NoError(t, err)
			assert.IsType(t, tt.want, cache)

			require.Contains(t, d.probes, "redis")
			assert.NoError(t, d.probes["redis"](ctx))

			require.NoError(t, cache.Save(ctx, "{ hello }", "apq_x", []string{"APQ"}))
			assert.True(t, mr.Exists("apqgate:apq_x"))
		})
	}
}

func TestOpenCache_PostgresUnavailable(t *testing.T) {
	calls := 0
	withStoreOpener(t, func(context.Context, ...dbopen.Options) (*apqdb.Store, error) {
		calls++
		return nil, dbopen.ErrDatabaseNotConfigured
	})

	cfg := config.DefaultConfig()
	cfg.Cache.Backend = config.BackendPostgres
	d := newDeps(cfg)
	defer d.Close()

	_, err := d.openCache(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, dbopen.ErrDatabaseNotConfigured))
	assert.Equal(t, 1, calls)
}

func TestOpenCache_UnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.Backend = "memcached"
	d := newDeps(cfg)
	defer d.Close()

	_, err := d.openCache(context.Background())
	assert.ErrorContains(t, err, "memcached")
}

func TestDeps_CloseOrder(t *testing.T) {
	d := newDeps(config.DefaultConfig())
	var order []int
	d.onClose(func() { order = append(order, 1) })
	d.onClose(func() { order = append(order, 2) })

	d.Close()
	d.Close()
	assert.Equal(t, []int{2, 1}, order)
}

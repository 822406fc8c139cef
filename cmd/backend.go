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
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/cardinalhq/apqgate/apqdb"
	"github.com/cardinalhq/apqgate/config"
	"github.com/cardinalhq/apqgate/internal/dbopen"
	"github.com/cardinalhq/apqgate/internal/healthcheck"
	"github.com/cardinalhq/apqgate/internal/querycache"
)

// storeOpener connects to APQDB. Tests replace it.
var storeOpener = apqdb.APQDBStore

// deps holds the long-lived clients a command needs and releases them on
// Close. APQDB is opened at most once and shared by the postgres backend and
// the scope configuration service.
type deps struct {
	cfg     *config.Config
	dbOpts  []dbopen.Options
	store   *apqdb.Store
	probes  map[string]healthcheck.ProbeFunc
	closers []func()
}

func newDeps(cfg *config.Config, dbOpts ...dbopen.Options) *deps {
	return &deps{
		cfg:    cfg,
		dbOpts: dbOpts,
		probes: map[string]healthcheck.ProbeFunc{},
	}
}

func (d *deps) onClose(fn func()) {
	d.closers = append(d.closers, fn)
}

// Close releases everything in reverse order of creation.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func (d *deps) apqdbStore(ctx context.Context) (*apqdb.Store, error) {
	if d.store != nil {
		return d.store, nil
	}
	store, err := storeOpener(ctx, d.dbOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to APQDB: %w", err)
	}
	d.store = store
	d.probes["apqdb"] = store.Ping
	d.onClose(store.Close)
	return store, nil
}

// openCache builds the configured cache backend, with an in-memory front for
// the shared backends when cache.front_ttl is set.
func (d *deps) openCache(ctx context.Context) (querycache.Cache, error) {
	cc := d.cfg.Cache

	var back querycache.Cache
	switch cc.Backend {
	case config.BackendMemory:
		m := querycache.NewMemory(querycache.MemoryOptions{TTL: cc.TTL, Capacity: cc.Capacity})
		d.onClose(m.Close)
		slog.Info("Using in-memory query cache", slog.Duration("ttl", cc.TTL), slog.Uint64("capacity", cc.Capacity))
		return m, nil
	case config.BackendRedis:
		rc := d.cfg.Redis
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    strings.Split(rc.Addr, ","),
			Password: rc.Password,
			DB:       rc.DB,
		})
		d.onClose(func() {
			if err := client.Close(); err != nil {
				slog.Warn("Failed to close redis client", slog.Any("error", err))
			}
		})
		r := querycache.NewRedis(client, rc.Prefix, cc.TTL)
		d.probes["redis"] = r.Ping
		back = r
		slog.Info("Using redis query cache", slog.String("addr", rc.Addr), slog.String("prefix", rc.Prefix))
	case config.BackendPostgres:
		store, err := d.apqdbStore(ctx)
		if err != nil {
			return nil, err
		}
		back = querycache.NewPostgres(store)
		slog.Info("Using postgres query cache")
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cc.Backend)
	}

	if cc.FrontTTL <= 0 {
		return back, nil
	}
	front := querycache.NewMemory(querycache.MemoryOptions{TTL: cc.FrontTTL, Capacity: cc.Capacity})
	t := querycache.NewTiered(front, back)
	d.onClose(t.Close)
	return t, nil
}

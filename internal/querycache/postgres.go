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
package querycache

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/apqgate/apqdb"
)

// PersistedQueryStore is the subset of apqdb.Querier used by Postgres.
type PersistedQueryStore interface {
	GetPersistedQuery(ctx context.Context, cacheKey string) (string, error)
	UpsertPersistedQuery(ctx context.Context, arg apqdb.UpsertPersistedQueryParams) error
	DeletePersistedQueriesByTags(ctx context.Context, tags []string) (int64, error)
}

// Postgres is a durable Cache stored in the persisted_query table.
// Entries never expire.
type Postgres struct {
	store PersistedQueryStore
}

var _ Cache = (*Postgres)(nil)

func NewPostgres(store PersistedQueryStore) *Postgres {
	return &Postgres{store: store}
}

func (p *Postgres) Load(ctx context.Context, key string) (string, bool, error) {
	query, err := p.store.GetPersistedQuery(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return query, true, nil
}

func (p *Postgres) Save(ctx context.Context, value, key string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	return p.store.UpsertPersistedQuery(ctx, apqdb.UpsertPersistedQueryParams{
		CacheKey: key,
		Query:    value,
		Tags:     tags,
	})
}

func (p *Postgres) CleanTags(ctx context.Context, tags ...string) (int, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	n, err := p.store.DeletePersistedQueriesByTags(ctx, tags)
	return int(n), err
}

// Ping checks the store when it supports it.
func (p *Postgres) Ping(ctx context.Context) error {
	if pinger, ok := p.store.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

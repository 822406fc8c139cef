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

// Package querycache provides tagged string caches used to hold persisted
// GraphQL queries.
//
// Keys and values are opaque strings. Every entry may carry tags, and
// CleanTags removes all entries carrying any of the given tags, which is how
// persisted queries are flushed without touching other cache users.
//
// Backends:
//   - Memory: in-process, optional TTL and capacity
//   - Redis: shared across gateway instances
//   - Postgres: durable, backed by apqdb
//   - Tiered: a Memory front over any durable backend
//
// Scoped wraps any backend so each deployment scope sees its own key space.
package querycache

import (
	"context"
)

// Cache is a tagged key/value store. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Load returns the value stored under key. found is false on a miss;
	// err is only set when the backend itself failed.
	Load(ctx context.Context, key string) (value string, found bool, err error)

	// Save stores value under key, replacing any previous value, and attaches tags.
	Save(ctx context.Context, value, key string, tags []string) error

	// CleanTags removes every entry carrying at least one of tags and returns
	// the number of entries removed.
	CleanTags(ctx context.Context, tags ...string) (int, error)
}

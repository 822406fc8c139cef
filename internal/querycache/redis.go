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
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/redis/go-redis/v9"
)

// Redis is a Cache shared by every gateway instance pointing at the same
// Redis database. Values live under <prefix><key>; each tag is a Redis set
// <prefix>tag:<tag> holding the value keys that carry it.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Cache = (*Redis)(nil)

// NewRedis returns a Redis cache. ttl of zero stores entries without expiry.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *Redis) valueKey(key string) string {
	return r.prefix + key
}

func (r *Redis) tagKey(tag string) string {
	return r.prefix + "tag:" + tag
}

func (r *Redis) Load(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.valueKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *Redis) Save(ctx context.Context, value, key string, tags []string) error {
	valueKey := r.valueKey(key)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, valueKey, value, r.ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, r.tagKey(tag), valueKey)
		}
		return nil
	})
	return err
}

func (r *Redis) CleanTags(ctx context.Context, tags ...string) (int, error) {
	if len(tags) == 0 {
		return 0, nil
	}

	tagKeys := make([]string, 0, len(tags))
	members := mapset.NewThreadUnsafeSet[string]()
	for _, tag := range tags {
		tagKey := r.tagKey(tag)
		tagKeys = append(tagKeys, tagKey)
		keys, err := r.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			return 0, err
		}
		members.Append(keys...)
	}

	var deleted *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if members.Cardinality() > 0 {
			deleted = pipe.Del(ctx, members.ToSlice()...)
		}
		pipe.Del(ctx, tagKeys...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// Ping checks that Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

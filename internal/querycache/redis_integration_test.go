//go:build integration

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
	"testing"

	"github.com/orlangure/gnomock"
	redispreset "github.com/orlangure/gnomock/preset/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedis_Server(t *testing.T) {
	container, err := gnomock.Start(redispreset.Preset())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gnomock.Stop(container) })

	client := redis.NewClient(&redis.Options{Addr: container.DefaultAddress()})
	t.Cleanup(func() { _ = client.Close() })

	testCacheContract(t, func(t *testing.T) Cache {
		require.NoError(t, client.FlushDB(context.Background()).Err())
		return NewRedis(client, "it:", 0)
	})
}

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCacheContract checks the behavior every backend shares.
func testCacheContract(t *testing.T, newCache func(t *testing.T) Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		c := newCache(t)
		value, found, err := c.Load(ctx, "apq_missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, value)
	})

	t.Run("save then load", func(t *testing.T) {
		c := newCache(t)
		require.NoError(t, c.Save(ctx, "{hello}", "apq_1", []string{"APQ"}))

		value, found, err := c.Load(ctx, "apq_1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "{hello}", value)
	})

	t.Run("save replaces", func(t *testing.T) {
		c := newCache(t)
		require.NoError(t, c.Save(ctx, "a", "k", []string{"APQ"}))
		require.NoError(t, c.Save(ctx, "b", "k", []string{"APQ"}))

		value, found, err := c.Load(ctx, "k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "b", value)
	})

	t.Run("clean tags", func(t *testing.T) {
		c := newCache(t)
		require.NoError(t, c.Save(ctx, "1", "default/apq_1", []string{"APQ", "APQ_default"}))
		require.NoError(t, c.Save(ctx, "2", "uk/apq_2", []string{"APQ", "APQ_uk"}))
		require.NoError(t, c.Save(ctx, "3", "other", []string{"OTHER"}))

		n, err := c.CleanTags(ctx, "APQ_uk")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assertFound(t, c, "default/apq_1", true)
		assertFound(t, c, "uk/apq_2", false)

		n, err = c.CleanTags(ctx, "APQ", "UNKNOWN")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assertFound(t, c, "default/apq_1", false)
		assertFound(t, c, "other", true)

		n, err = c.CleanTags(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func assertFound(t *testing.T, c Cache, key string, want bool) {
	t.Helper()
	_, found, err := c.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, want, found, "key %s", key)
}

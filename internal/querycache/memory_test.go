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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Contract(t *testing.T) {
	testCacheContract(t, func(t *testing.T) Cache {
		m := NewMemory(MemoryOptions{})
		t.Cleanup(m.Close)
		return m
	})
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{TTL: 20 * time.Millisecond})
	defer m.Close()

	require.NoError(t, m.Save(ctx, "v", "k", []string{"APQ"}))
	assertFound(t, m, "k", true)

	assert.Eventually(t, func() bool {
		_, found, _ := m.Load(ctx, "k")
		return !found
	}, time.Second, 5*time.Millisecond)
}

func TestMemory_CapacityEvictionUntags(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{Capacity: 2})
	defer m.Close()

	require.NoError(t, m.Save(ctx, "1", "k1", []string{"APQ"}))
	require.NoError(t, m.Save(ctx, "2", "k2", []string{"APQ"}))
	require.NoError(t, m.Save(ctx, "3", "k3", []string{"APQ"}))

	assert.Equal(t, 2, m.Len())
	assertFound(t, m, "k1", false)

	n, err := m.CleanTags(ctx, "APQ")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, m.Len())
}

func TestMemory_SaveRetagsKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{})
	defer m.Close()

	require.NoError(t, m.Save(ctx, "v", "k", []string{"A"}))
	require.NoError(t, m.Save(ctx, "v", "k", []string{"B"}))

	n, err := m.CleanTags(ctx, "A")
	require.NoError(t, err)
	assert.Zero(t, n)
	assertFound(t, m, "k", true)

	n, err = m.CleanTags(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemory_Purge(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{})
	defer m.Close()

	require.NoError(t, m.Save(ctx, "1", "k1", []string{"APQ"}))
	require.NoError(t, m.Save(ctx, "2", "k2", nil))
	m.Purge()

	assert.Zero(t, m.Len())
	n, err := m.CleanTags(ctx, "APQ")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{Capacity: 50})
	defer m.Close()

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				key := fmt.Sprintf("k%d", (w*200+i)%100)
				_ = m.Save(ctx, key, key, []string{"APQ"})
				_, _, _ = m.Load(ctx, key)
				if i%50 == 0 {
					_, _ = m.CleanTags(ctx, "APQ")
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), 50)
}

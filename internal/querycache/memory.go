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
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jellydator/ttlcache/v3"
)

// MemoryOptions configures a Memory cache.
type MemoryOptions struct {
	// TTL is measured from the last write. Zero keeps entries until evicted.
	TTL time.Duration
	// Capacity bounds the number of entries, evicting the least recently
	// used. Zero means unbounded.
	Capacity uint64
}

type memoryEntry struct {
	value string
	gen   uint64
}

type keyTags struct {
	gen  uint64
	tags mapset.Set[string]
}

// Memory is an in-process Cache.
type Memory struct {
	items   *ttlcache.Cache[string, memoryEntry]
	started bool
	gen     atomic.Uint64

	// mu guards the tag index. ttlcache is never called while mu is held
	// because eviction callbacks take mu.
	mu     sync.Mutex
	keys   map[string]keyTags
	tagged map[string]mapset.Set[string]
}

var _ Cache = (*Memory)(nil)

// NewMemory returns an empty Memory cache. Call Close to release it.
func NewMemory(opts MemoryOptions) *Memory {
	options := []ttlcache.Option[string, memoryEntry]{
		ttlcache.WithTTL[string, memoryEntry](opts.TTL),
		ttlcache.WithDisableTouchOnHit[string, memoryEntry](),
	}
	if opts.Capacity > 0 {
		options = append(options, ttlcache.WithCapacity[string, memoryEntry](opts.Capacity))
	}

	m := &Memory{
		items:  ttlcache.New(options...),
		keys:   map[string]keyTags{},
		tagged: map[string]mapset.Set[string]{},
	}
	m.items.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, memoryEntry]) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if kt, ok := m.keys[item.Key()]; ok && kt.gen == item.Value().gen {
			m.untagLocked(item.Key())
		}
	})
	if opts.TTL > 0 {
		m.started = true
		go m.items.Start()
	}
	return m
}

func (m *Memory) Load(_ context.Context, key string) (string, bool, error) {
	item := m.items.Get(key)
	if item == nil {
		return "", false, nil
	}
	return item.Value().value, true, nil
}

func (m *Memory) Save(_ context.Context, value, key string, tags []string) error {
	gen := m.gen.Add(1)
	m.items.Set(key, memoryEntry{value: value, gen: gen}, ttlcache.DefaultTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.untagLocked(key)
	if len(tags) == 0 {
		return nil
	}
	m.keys[key] = keyTags{gen: gen, tags: mapset.NewThreadUnsafeSet(tags...)}
	for _, tag := range tags {
		set, ok := m.tagged[tag]
		if !ok {
			set = mapset.NewThreadUnsafeSet[string]()
			m.tagged[tag] = set
		}
		set.Add(key)
	}
	return nil
}

func (m *Memory) CleanTags(_ context.Context, tags ...string) (int, error) {
	m.mu.Lock()
	matched := mapset.NewThreadUnsafeSet[string]()
	for _, tag := range tags {
		if set, ok := m.tagged[tag]; ok {
			matched = matched.Union(set)
		}
	}
	keys := matched.ToSlice()
	for _, key := range keys {
		m.untagLocked(key)
	}
	m.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if m.items.Has(key) {
			removed++
		}
		m.items.Delete(key)
	}
	return removed, nil
}

// untagLocked drops key from the tag index. m.mu must be held.
func (m *Memory) untagLocked(key string) {
	kt, ok := m.keys[key]
	if !ok {
		return
	}
	delete(m.keys, key)
	for _, tag := range kt.tags.ToSlice() {
		set := m.tagged[tag]
		if set == nil {
			continue
		}
		set.Remove(key)
		if set.Cardinality() == 0 {
			delete(m.tagged, tag)
		}
	}
}

// Purge removes every entry regardless of tags.
func (m *Memory) Purge() {
	m.items.DeleteAll()

	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.keys)
	clear(m.tagged)
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	return m.items.Len()
}

// Close stops background expiry.
func (m *Memory) Close() {
	if m.started {
		m.items.Stop()
	}
}

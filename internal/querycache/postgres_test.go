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
	"slices"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/cardinalhq/apqgate/apqdb"
)

// fakeStore mimics the persisted_query table.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]apqdb.UpsertPersistedQueryParams
	err  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]apqdb.UpsertPersistedQueryParams{}}
}

func (f *fakeStore) GetPersistedQuery(_ context.Context, cacheKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	row, ok := f.rows[cacheKey]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return row.Query, nil
}

func (f *fakeStore) UpsertPersistedQuery(_ context.Context, arg apqdb.UpsertPersistedQueryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows[arg.CacheKey] = arg
	return nil
}

func (f *fakeStore) DeletePersistedQueriesByTags(_ context.Context, tags []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for key, row := range f.rows {
		if slices.ContainsFunc(row.Tags, func(tag string) bool { return slices.Contains(tags, tag) }) {
			delete(f.rows, key)
			n++
		}
	}
	return n, nil
}

func TestPostgres_Contract(t *testing.T) {
	testCacheContract(t, func(t *testing.T) Cache {
		return NewPostgres(newFakeStore())
	})
}

func TestPostgres_NilTagsStoredEmpty(t *testing.T) {
	store := newFakeStore()
	p := NewPostgres(store)

	assert.NoError(t, p.Save(context.Background(), "v", "k", nil))
	assert.NotNil(t, store.rows["k"].Tags)
}

func TestPostgres_Errors(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.err = errors.New("connection refused")
	p := NewPostgres(store)

	_, found, err := p.Load(ctx, "k")
	assert.Error(t, err)
	assert.False(t, found)
	assert.Error(t, p.Save(ctx, "v", "k", nil))
	_, err = p.CleanTags(ctx, "APQ")
	assert.Error(t, err)
	assert.NoError(t, p.Ping(ctx))
}

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	frontCounter   otelmetric.Int64Counter
	frontHitAttrs  = otelmetric.WithAttributes(attribute.String("result", "hit"))
	frontMissAttrs = otelmetric.WithAttributes(attribute.String("result", "miss"))
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/apqgate/internal/querycache")

	var err error
	frontCounter, err = meter.Int64Counter(
		"apqgate.querycache.front.lookups",
		otelmetric.WithDescription("Number of tiered cache lookups answered by the in-memory front"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create querycache.front.lookups counter: %w", err))
	}
}

// Tiered puts an in-memory front in front of a shared backend.
// Reads fall through to back on a front miss, collapsing concurrent loads of
// the same key; writes go to both. Entries flushed through another Tiered
// remain visible here until they expire from the front.
type Tiered struct {
	front *Memory
	back  Cache
	group singleflight.Group
}

var _ Cache = (*Tiered)(nil)

func NewTiered(front *Memory, back Cache) *Tiered {
	return &Tiered{front: front, back: back}
}

type loadResult struct {
	value string
	found bool
}

func (t *Tiered) Load(ctx context.Context, key string) (string, bool, error) {
	if value, found, _ := t.front.Load(ctx, key); found {
		frontCounter.Add(ctx, 1, frontHitAttrs)
		return value, true, nil
	}
	frontCounter.Add(ctx, 1, frontMissAttrs)

	v, err, _ := t.group.Do(key, func() (any, error) {
		value, found, err := t.back.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			_ = t.front.Save(ctx, value, key, nil)
		}
		return loadResult{value: value, found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	res := v.(loadResult)
	return res.value, res.found, nil
}

func (t *Tiered) Save(ctx context.Context, value, key string, tags []string) error {
	if err := t.back.Save(ctx, value, key, tags); err != nil {
		return err
	}
	return t.front.Save(ctx, value, key, tags)
}

// CleanTags cleans the backend and empties the front entirely.
func (t *Tiered) CleanTags(ctx context.Context, tags ...string) (int, error) {
	n, err := t.back.CleanTags(ctx, tags...)
	t.front.Purge()
	return n, err
}

func (t *Tiered) Ping(ctx context.Context) error {
	if pinger, ok := t.back.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// Close stops the front cache.
func (t *Tiered) Close() {
	t.front.Close()
}

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

// Package idgen generates roughly time-ordered identifiers for gateway
// instances.
package idgen

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

// Epoch is the start time of generated IDs.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type FlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewFlakeGenerator returns a generator whose machine ID is derived from the
// host's private IP address.
func NewFlakeGenerator() (*FlakeGenerator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{StartTime: Epoch})
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &FlakeGenerator{sf: sf}, nil
}

// NextID returns a positive int64 that increases roughly in time order.
// It falls back to a random value when the generator is exhausted.
func (g *FlakeGenerator) NextID() int64 {
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

var (
	defaultOnce sync.Once
	defaultGen  *FlakeGenerator
)

// InstanceID returns a new base-36 identifier from a shared generator. Hosts
// without a private address get a random ID.
func InstanceID() string {
	defaultOnce.Do(func() {
		defaultGen, _ = NewFlakeGenerator()
	})
	if defaultGen == nil {
		return strconv.FormatInt(rand.Int64(), 36)
	}
	return strconv.FormatInt(defaultGen.NextID(), 36)
}

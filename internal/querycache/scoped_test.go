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

func TestScoped_Isolation(t *testing.T) {
	ctx := context.Background()
	base := NewMemory(MemoryOptions{})
	defer base.Close()

	uk := Scoped(base, "uk", "APQ_uk")
	us := Scoped(base, "us", "APQ_us")

	require.NoError(t, uk.Save(ctx, "{uk}", "apq_1", []string{"APQ"}))

	assertFound(t, uk, "apq_1", true)
	assertFound(t, us, "apq_1", false)
	assertFound(t, base, "uk/apq_1", true)
	assertFound(t, base, "apq_1", false)
}

func TestScoped_Tags(t *testing.T) {
	ctx := context.Background()
	base := NewMemory(MemoryOptions{})
	defer base.Close()

	tags := []string{"APQ"}
	uk := Scoped(base, "uk", "APQ_uk")
	require.NoError(t, uk.Save(ctx, "{uk}", "apq_1", tags))
	require.NoError(t, Scoped(base, "us", "APQ_us").Save(ctx, "{us}", "apq_1", tags))
	assert.Equal(t, []string{"APQ"}, tags)

	n, err := uk.CleanTags(ctx, "APQ_uk")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assertFound(t, base, "uk/apq_1", false)
	assertFound(t, base, "us/apq_1", true)
}

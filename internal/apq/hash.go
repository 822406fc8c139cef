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

package apq

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	// CacheKeyPrefix namespaces persisted queries from other cache users.
	CacheKeyPrefix = "apq"

	// CacheTag is attached to every persisted query so they can be flushed together.
	CacheTag = "APQ"
)

// HashQuery returns the lowercase hex SHA-256 digest of query.
func HashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// CacheKey returns the cache key a query with the given hash is stored under.
func CacheKey(hash string) string {
	return CacheKeyPrefix + "_" + hash
}

// ScopeTag returns the tag carried by every persisted query of one scope.
func ScopeTag(scope string) string {
	return CacheTag + "_" + scope
}

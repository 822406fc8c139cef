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
// Package scopeconfig provides cached, hierarchical per-scope configuration.
//
// # Storage Model
//
// Configs are stored in APQDB as (scope, key) -> JSONB value. The default
// scope holds values shared by every scope.
//
// # Fallback Chain
//
// Lookups follow: scope-specific -> default scope -> static configuration ->
// hardcoded default, resolved field by field.
//
// # Caching
//
// TTL-based caching with negative caching (ErrNoRows cached to avoid repeated
// misses). Writes through the Service invalidate the affected entry; writes
// made elsewhere become visible once the entry expires.
package scopeconfig

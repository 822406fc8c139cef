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

// Package apq implements Automatic Persisted Queries in front of a GraphQL
// HTTP handler.
//
// # Protocol
//
// Clients send the SHA-256 hex digest of a query in
// extensions.persistedQuery.sha256Hash instead of the query text. The
// interceptor looks the hash up in a query cache and, on a hit, injects the
// cached text back into the request before it reaches the GraphQL engine. On a
// miss it answers with PersistedQueryNotFound so the client retries with the
// full query, which is then stored after execution.
//
// # Phases
//
// The pre-phase (ResolveQuery) runs before execution and either passes the
// request through, rewrites it with a cached query, or rejects it. The
// post-phase (ValidateAndStore) runs after execution whenever the executed
// request carried a query: a declared hash that does not match the query
// replaces the response, otherwise the query is stored under apq_<sha256> if
// it is not cached yet. Middleware composes both around an http.Handler.
//
// # Cache Layout
//
// Entries are stored under apq_<hash> with the APQ tag. With scoping enabled
// the key is prefixed by the scope and the entry also carries APQ_<scope>, so
// a single scope can be flushed without touching the others.
package apq

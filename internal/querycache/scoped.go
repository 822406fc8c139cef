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
	"slices"
)

// ScopeSeparator joins the scope and the key of a scoped entry.
const ScopeSeparator = "/"

type scoped struct {
	next   Cache
	prefix string
	tag    string
}

var _ Cache = (*scoped)(nil)

// Scoped returns a view of c in which every key is prefixed with scope and
// every saved entry additionally carries scopeTag. Views over different scopes
// never see each other's entries. Tags passed to CleanTags are not rewritten.
func Scoped(c Cache, scope, scopeTag string) Cache {
	return &scoped{
		next:   c,
		prefix: scope + ScopeSeparator,
		tag:    scopeTag,
	}
}

func (s *scoped) Load(ctx context.Context, key string) (string, bool, error) {
	return s.next.Load(ctx, s.prefix+key)
}

func (s *scoped) Save(ctx context.Context, value, key string, tags []string) error {
	all := tags
	if s.tag != "" && !slices.Contains(tags, s.tag) {
		all = append(slices.Clone(tags), s.tag)
	}
	return s.next.Save(ctx, value, s.prefix+key, all)
}

func (s *scoped) CleanTags(ctx context.Context, tags ...string) (int, error) {
	return s.next.CleanTags(ctx, tags...)
}

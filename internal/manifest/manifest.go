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
// Package manifest reads Apollo persisted query manifests and checks every
// operation before it is used to seed the query cache.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/cardinalhq/apqgate/internal/apq"
)

const (
	// Format is the only manifest format understood.
	Format = "apollo-persisted-query-manifest"
	// Version is the only manifest version understood.
	Version = 1
)

var (
	ErrEmptyBody    = errors.New("operation body is empty")
	ErrHashMismatch = errors.New("operation id is not the sha256 of its body")
	ErrDuplicateID  = errors.New("duplicate operation id")
)

// Manifest is an Apollo persisted query manifest.
type Manifest struct {
	Format     string      `json:"format"`
	Version    int         `json:"version"`
	Operations []Operation `json:"operations"`
}

// Operation is one persisted operation. ID is the SHA-256 of Body.
type Operation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Body string `json:"body"`
}

// Problem describes an operation that failed validation.
type Problem struct {
	Operation Operation
	Err       error
}

func (p Problem) Error() string {
	return fmt.Sprintf("operation %q (%s): %v", p.Operation.Name, p.Operation.ID, p.Err)
}

func (p Problem) Unwrap() error {
	return p.Err
}

// Parse decodes a manifest and checks its format and version.
func Parse(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if m.Format != Format {
		return nil, fmt.Errorf("unsupported manifest format %q", m.Format)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	return &m, nil
}

// Validate splits the operations into those safe to persist and those that
// are not. An operation is safe when its body parses as a GraphQL document
// and hashes to its id. Later duplicates of an id are rejected.
func (m *Manifest) Validate() (valid []Operation, problems []Problem) {
	seen := make(map[string]struct{}, len(m.Operations))
	for _, op := range m.Operations {
		if err := checkOperation(op); err != nil {
			problems = append(problems, Problem{Operation: op, Err: err})
			continue
		}
		if _, dup := seen[op.ID]; dup {
			problems = append(problems, Problem{Operation: op, Err: ErrDuplicateID})
			continue
		}
		seen[op.ID] = struct{}{}
		valid = append(valid, op)
	}
	return valid, problems
}

func checkOperation(op Operation) error {
	if op.Body == "" {
		return ErrEmptyBody
	}
	if _, err := parser.ParseQuery(&ast.Source{Name: op.Name, Input: op.Body}); err != nil {
		return fmt.Errorf("invalid GraphQL: %w", err)
	}
	if apq.HashQuery(op.Body) != op.ID {
		return ErrHashMismatch
	}
	return nil
}

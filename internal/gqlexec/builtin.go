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
// Package gqlexec provides the GraphQL executors the gateway can front:
// a small built-in schema and a reverse proxy to an upstream endpoint.
package gqlexec

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/cardinalhq/apqgate/internal/logctx"
)

// Request is a GraphQL-over-HTTP request.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Builtin executes requests against a fixed schema:
//
//	type Query {
//	  hello: String
//	  echo(message: String!): String
//	}
type Builtin struct {
	schema graphql.Schema
}

var _ http.Handler = (*Builtin)(nil)

// NewBuiltin builds the built-in schema.
func NewBuiltin() (*Builtin, error) {
	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name: "Query",
			Fields: graphql.Fields{
				"hello": &graphql.Field{
					Type: graphql.String,
					Resolve: func(_ graphql.ResolveParams) (interface{}, error) {
						return "world", nil
					},
				},
				"echo": &graphql.Field{
					Type: graphql.String,
					Args: graphql.FieldConfigArgument{
						"message": &graphql.ArgumentConfig{
							Type: graphql.NewNonNull(graphql.String),
						},
					},
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						return p.Args["message"], nil
					},
				},
			},
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}
	return &Builtin{schema: schema}, nil
}

func (b *Builtin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(r)
	if err != nil {
		writeErrors(w, http.StatusBadRequest, gqlerror.Errorf("%s", err.Error()))
		return
	}
	if req.Query == "" {
		writeErrors(w, http.StatusBadRequest, gqlerror.Errorf("must provide query string"))
		return
	}

	result := graphql.Do(graphql.Params{
		Context:        r.Context(),
		Schema:         b.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logctx.FromContext(r.Context()).Error("Failed to encode result", slog.Any("error", err))
	}
}

func readRequest(r *http.Request) (*Request, error) {
	switch r.Method {
	case http.MethodGet:
		params := r.URL.Query()
		req := &Request{
			Query:         params.Get("query"),
			OperationName: params.Get("operationName"),
		}
		if v := params.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return nil, fmt.Errorf("variables are invalid JSON: %w", err)
			}
		}
		return req, nil
	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("body is not a GraphQL request: %w", err)
		}
		return &req, nil
	default:
		return nil, fmt.Errorf("method %s not allowed", r.Method)
	}
}

func writeErrors(w http.ResponseWriter, status int, errs ...*gqlerror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]gqlerror.List{"errors": errs})
}

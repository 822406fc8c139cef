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
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadEnvelope(t *testing.T) {
	const hash = "ecf4edb46db40b5132295c0291d62fb65d6759a9eedfa4d5d612dd5ec54a6b38"
	ext := `{"persistedQuery":{"version":1,"sha256Hash":"` + hash + `"}}`

	post := func(contentType, body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		return req
	}

	tests := []struct {
		name            string
		req             *http.Request
		wantQuery       string
		wantHash        string
		wantPassthrough bool
		wantMalformed   bool
	}{
		{
			name:      "GET query",
			req:       httptest.NewRequest(http.MethodGet, "/graphql?query=%7B__typename%7D", nil),
			wantQuery: "{__typename}",
		},
		{
			name:     "GET hash only",
			req:      httptest.NewRequest(http.MethodGet, "/graphql?extensions="+url.QueryEscape(ext), nil),
			wantHash: hash,
		},
		{
			name:          "GET invalid extensions",
			req:           httptest.NewRequest(http.MethodGet, "/graphql?extensions=%7B", nil),
			wantMalformed: true,
		},
		{
			name:      "POST query and hash",
			req:       post("application/json", `{"query":"{__typename}","extensions":`+ext+`}`),
			wantQuery: "{__typename}",
			wantHash:  hash,
		},
		{
			name:      "POST charset and no content type",
			req:       post("", `{"query":"{hello}"}`),
			wantQuery: "{hello}",
		},
		{
			name:      "POST graphql-response+json",
			req:       post("application/graphql-response+json; charset=utf-8", `{"query":"{hello}"}`),
			wantQuery: "{hello}",
		},
		{
			name:            "POST batch",
			req:             post("application/json", `[{"query":"{hello}"}]`),
			wantPassthrough: true,
		},
		{
			name:            "POST multipart",
			req:             post("multipart/form-data; boundary=x", "--x--"),
			wantPassthrough: true,
		},
		{
			name:            "POST form",
			req:             post("application/x-www-form-urlencoded", "query=%7Bhello%7D"),
			wantPassthrough: true,
		},
		{
			name:            "POST application/graphql",
			req:             post("application/graphql", "{hello}"),
			wantPassthrough: true,
		},
		{
			name:     "POST text/plain hash only",
			req:      post("text/plain;charset=UTF-8", `{"extensions":`+ext+`}`),
			wantHash: hash,
		},
		{
			name:      "POST unparseable content type",
			req:       post("application/json;;", `{"query":"{hello}"}`),
			wantQuery: "{hello}",
		},
		{
			name:     "GET empty hash",
			req:      httptest.NewRequest(http.MethodGet, "/graphql?extensions="+url.QueryEscape(`{"persistedQuery":{"version":1,"sha256Hash":""}}`), nil),
			wantHash: "",
		},
		{
			name: "POST empty body",
			req:  post("application/json", ""),
		},
		{
			name:          "POST invalid JSON",
			req:           post("application/json", `{"query":`),
			wantMalformed: true,
		},
		{
			name:          "POST query is not a string",
			req:           post("application/json", `{"query":42}`),
			wantMalformed: true,
		},
		{
			name:          "POST extensions is not an object",
			req:           post("application/json", `{"extensions":"x"}`),
			wantMalformed: true,
		},
		{
			name: "PUT ignored",
			req:  httptest.NewRequest(http.MethodPut, "/graphql?query=x", nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ReadEnvelope(tt.req)
			if tt.wantMalformed {
				assert.ErrorIs(t, err, ErrMalformedPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, env.Query)
			assert.Equal(t, tt.wantQuery != "", env.HasQuery())
			assert.Equal(t, tt.wantHash, env.Hash())
			assert.Equal(t, tt.wantPassthrough, env.passthrough)
		})
	}
}

func TestReadEnvelope_BodyStaysReadable(t *testing.T) {
	body := `{"query":"{hello}","variables":{"a":1}}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))

	_, err := ReadEnvelope(req)
	require.NoError(t, err)

	got, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
	assert.Equal(t, int64(len(body)), req.ContentLength)
}

func TestReadEnvelope_Gzip(t *testing.T) {
	body := `{"query":"{hello}"}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(gzipped(t, body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	env, err := ReadEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "{hello}", env.Query)

	got, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
	assert.Empty(t, req.Header.Get("Content-Encoding"))

	bad := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("not gzip"))
	bad.Header.Set("Content-Encoding", "gzip")
	_, err = ReadEnvelope(bad)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestReadEnvelope_BodyLimit(t *testing.T) {
	body := `{"query":"{hello}"}`

	tests := []struct {
		name    string
		limit   int64
		gzip    bool
		wantErr error
	}{
		{"within limit", int64(len(body)), false, nil},
		{"over limit", int64(len(body)) - 1, false, ErrPayloadTooLarge},
		{"gzip within limit", int64(len(body)), true, nil},
		{"gzip expands past limit", 8, true, ErrPayloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.gzip {
				req = httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(gzipped(t, body)))
				req.Header.Set("Content-Encoding", "gzip")
			} else {
				req = httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
			}
			env, err := readEnvelope(req, tt.limit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "{hello}", env.Query)
		})
	}
}

func TestEnvelope_WithQuery(t *testing.T) {
	t.Run("POST keeps other members", func(t *testing.T) {
		body := `{"operationName":"Q","variables":{"b":[1,2],"a":"x"},"extensions":{"persistedQuery":{"version":1,"sha256Hash":"h"}},"custom":true}`
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
		env, err := ReadEnvelope(req)
		require.NoError(t, err)

		out, raw, err := env.withQuery(req, "query Q { hello }")
		require.NoError(t, err)

		var got map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, `"query Q { hello }"`, string(got["query"]))
		assert.Equal(t, `{"b":[1,2],"a":"x"}`, string(got["variables"]))
		assert.Equal(t, `"Q"`, string(got["operationName"]))
		assert.Equal(t, "true", string(got["custom"]))

		sent, err := io.ReadAll(out.Body)
		require.NoError(t, err)
		assert.Equal(t, raw, sent)
		assert.Equal(t, int64(len(raw)), out.ContentLength)
	})

	t.Run("GET keeps other parameters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/graphql?operationName=Q&extensions=%7B%7D&variables=%7B%22a%22%3A1%7D", nil)
		env, err := ReadEnvelope(req)
		require.NoError(t, err)

		out, raw, err := env.withQuery(req, "query Q { hello }")
		require.NoError(t, err)
		assert.Nil(t, raw)

		params := out.URL.Query()
		assert.Equal(t, "query Q { hello }", params.Get("query"))
		assert.Equal(t, "Q", params.Get("operationName"))
		assert.Equal(t, `{"a":1}`, params.Get("variables"))
		assert.Empty(t, req.URL.Query().Get("query"), "inbound request must not change")
	})
}

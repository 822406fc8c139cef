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
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// Envelope is the GraphQL-over-HTTP payload of one request.
// It makes no guarantees that the query is valid GraphQL.
type Envelope struct {
	// Query is the full query text, empty when the client sent none.
	Query      string
	Extensions *Extensions

	method string
	// fields holds every top-level member of a POST body so that a rewrite
	// keeps variables, operationName and unknown members byte for byte.
	fields map[string]json.RawMessage
	params url.Values
	// raw is the uncompressed POST body as received.
	raw []byte
	// passthrough marks payloads that are not APQ envelopes at all, such as
	// batched operations or multipart uploads.
	passthrough bool
}

// Extensions represents the extensions member of a GraphQL request.
type Extensions struct {
	PersistedQuery *PersistedQuery `json:"persistedQuery,omitempty"`
}

// PersistedQuery represents the persisted query extension sent by Apollo clients.
type PersistedQuery struct {
	Version    int    `json:"version,omitempty"`
	Sha256Hash string `json:"sha256Hash"`
}

// HasQuery reports whether the envelope carries non-empty query text.
func (e *Envelope) HasQuery() bool {
	return e != nil && e.Query != ""
}

// Hash returns the client-declared query hash, or "" when none was sent.
func (e *Envelope) Hash() string {
	if e == nil || e.Extensions == nil || e.Extensions.PersistedQuery == nil {
		return ""
	}
	return e.Extensions.PersistedQuery.Sha256Hash
}

// DefaultMaxBodyBytes caps a request body, after gzip decoding, when no other
// limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// ReadEnvelope extracts the GraphQL envelope from r. GET requests are read from
// the query string, POST requests from the JSON body. The body is replaced with
// an in-memory copy so r can still be handed to the next handler. Any other
// method yields an empty envelope.
func ReadEnvelope(r *http.Request) (*Envelope, error) {
	return readEnvelope(r, DefaultMaxBodyBytes)
}

func readEnvelope(r *http.Request, maxBody int64) (*Envelope, error) {
	switch r.Method {
	case http.MethodGet:
		return decodeParams(r.URL.Query())
	case http.MethodPost:
		if !carriesEnvelope(r.Header.Get("Content-Type")) {
			return &Envelope{method: r.Method, passthrough: true}, nil
		}
		body, err := readBody(r, maxBody)
		if err != nil {
			return nil, err
		}
		return decodeBody(body)
	default:
		return &Envelope{method: r.Method}, nil
	}
}

func decodeParams(params url.Values) (*Envelope, error) {
	env := &Envelope{
		method: http.MethodGet,
		params: params,
		Query:  params.Get("query"),
	}
	if raw := params.Get("extensions"); raw != "" {
		var ext Extensions
		if err := json.Unmarshal([]byte(raw), &ext); err != nil {
			return nil, fmt.Errorf("%w: extensions parameter: %w", ErrMalformedPayload, err)
		}
		env.Extensions = &ext
	}
	return env, nil
}

func decodeBody(body []byte) (*Envelope, error) {
	env := &Envelope{method: http.MethodPost, raw: body}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return env, nil
	}
	if trimmed[0] == '[' {
		env.passthrough = true
		return env, nil
	}

	if err := json.Unmarshal(trimmed, &env.fields); err != nil {
		return nil, fmt.Errorf("%w: not a valid GraphQL request body: %w", ErrMalformedPayload, err)
	}
	if raw, ok := env.fields["query"]; ok {
		if err := json.Unmarshal(raw, &env.Query); err != nil {
			return nil, fmt.Errorf("%w: query member: %w", ErrMalformedPayload, err)
		}
	}
	if raw, ok := env.fields["extensions"]; ok {
		var ext Extensions
		if err := json.Unmarshal(raw, &ext); err != nil {
			return nil, fmt.Errorf("%w: extensions member: %w", ErrMalformedPayload, err)
		}
		env.Extensions = &ext
	}
	return env, nil
}

// withQuery returns a copy of r that carries query in the same shape env was
// read from, together with the raw body the copy will present downstream.
func (e *Envelope) withQuery(r *http.Request, query string) (*http.Request, []byte, error) {
	out := r.Clone(r.Context())

	switch e.method {
	case http.MethodGet:
		params := make(url.Values, len(e.params)+1)
		for k, v := range e.params {
			params[k] = append([]string(nil), v...)
		}
		params.Set("query", query)
		out.URL.RawQuery = params.Encode()
		return out, nil, nil
	case http.MethodPost:
		encoded, err := json.Marshal(query)
		if err != nil {
			return nil, nil, err
		}
		fields := make(map[string]json.RawMessage, len(e.fields)+1)
		maps.Copy(fields, e.fields)
		fields["query"] = encoded
		body, err := json.Marshal(fields)
		if err != nil {
			return nil, nil, err
		}
		setBody(out, body)
		return out, body, nil
	default:
		return nil, nil, fmt.Errorf("cannot inject a query into a %s request", e.method)
	}
}

// carriesEnvelope reports whether a POST body of contentType is decoded as a
// JSON envelope. Form uploads and raw application/graphql documents are not;
// everything else is, including text/plain bodies sent by browsers to avoid a
// CORS preflight.
func carriesEnvelope(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		return false
	case mediaType == "application/x-www-form-urlencoded", mediaType == "application/graphql":
		return false
	}
	return true
}

type gzreadCloser struct {
	*gzip.Reader
	io.Closer
}

func (gz gzreadCloser) Close() error {
	err := gz.Reader.Close()
	if err != nil {
		return err
	}
	return gz.Closer.Close()
}

// readBody drains at most maxBody bytes of r.Body, transparently un-gzipping
// it, and leaves an uncompressed in-memory copy in its place.
func readBody(r *http.Request, maxBody int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	var src io.ReadCloser = r.Body
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: unable to parse gzip: %w", ErrMalformedPayload, err)
		}
		src = gzreadCloser{zr, r.Body}
	}

	body, err := io.ReadAll(io.LimitReader(src, maxBody+1))
	_ = src.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: reading request body: %w", ErrMalformedPayload, err)
	}
	if int64(len(body)) > maxBody {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrPayloadTooLarge, maxBody)
	}

	setBody(r, body)
	return body, nil
}

func setBody(r *http.Request, body []byte) {
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	r.ContentLength = int64(len(body))
	r.Header.Del("Content-Encoding")
	r.Header.Del("Content-Length")
}

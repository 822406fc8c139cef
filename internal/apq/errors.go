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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/cardinalhq/apqgate/internal/logctx"
)

var (
	// ErrMalformedPayload wraps any failure to decode the request envelope.
	ErrMalformedPayload = errors.New("malformed GraphQL payload")

	// ErrPayloadTooLarge is returned when a request body exceeds the configured limit.
	ErrPayloadTooLarge = errors.New("GraphQL payload too large")

	// ErrCacheUnavailable wraps failures reported by the query cache.
	ErrCacheUnavailable = errors.New("persisted query cache unavailable")
)

const (
	// NotFoundMessage is the error message clients match on to retry with the full query.
	NotFoundMessage = "PersistedQueryNotFound"

	// NotFoundCode is the extensions.code of the not-found error.
	NotFoundCode = "PERSISTED_QUERY_NOT_FOUND"

	// MismatchMessage is the plain-text body sent when the declared hash does not match the query.
	MismatchMessage = "provided sha does not match query"
)

var notFoundBody = mustNotFoundBody()

func mustNotFoundBody() []byte {
	body, err := json.Marshal(map[string]gqlerror.List{
		"errors": {
			&gqlerror.Error{
				Message:    NotFoundMessage,
				Extensions: map[string]interface{}{"code": NotFoundCode},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return body
}

// ErrorHandlerFunc writes the response for an error the interceptor could not
// turn into a protocol response itself.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)

// DefaultErrorHandler answers malformed payloads with 400, oversized ones with
// 413 and everything else with 500. Details of server-side failures are logged
// and never sent to the client.
func DefaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrPayloadTooLarge):
		http.Error(w, ErrPayloadTooLarge.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	logctx.FromContext(r.Context()).Error("Persisted query handling failed",
		slog.String("path", r.URL.Path), slog.Any("error", err))

	msg := http.StatusText(http.StatusInternalServerError)
	if errors.Is(err, ErrCacheUnavailable) {
		msg = ErrCacheUnavailable.Error()
	}
	http.Error(w, msg, http.StatusInternalServerError)
}

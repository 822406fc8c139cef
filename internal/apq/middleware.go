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
	"maps"
	"net/http"
)

// Middleware wraps next with both protocol phases.
//
// Requests that carry a query have their response buffered so the post-phase
// can replace it on a hash mismatch. Everything else is streamed.
func (i *Interceptor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := i.ResolveQuery(r)
		if err != nil {
			i.onError(w, r, err)
			return
		}
		if res.Rejection != nil {
			res.Rejection.Write(w)
			return
		}
		if !res.RunsPostPhase() {
			next.ServeHTTP(w, res.Request)
			return
		}

		buf := newBufferedWriter(w.Header())
		next.ServeHTTP(buf, res.Request)

		resp, err := i.ValidateAndStore(r.Context(), res, buf.response())
		if err != nil {
			i.onError(w, r, err)
			return
		}
		writeResponse(w, resp)
	})
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	dst := w.Header()
	clear(dst)
	maps.Copy(dst, resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// bufferedWriter holds a downstream response until the post-phase has run.
type bufferedWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

var _ http.ResponseWriter = (*bufferedWriter)(nil)

func newBufferedWriter(h http.Header) *bufferedWriter {
	return &bufferedWriter{header: h.Clone(), status: http.StatusOK}
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	b.status = status
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}

func (b *bufferedWriter) response() *Response {
	return &Response{
		StatusCode: b.status,
		Header:     b.header,
		Body:       b.body.Bytes(),
	}
}

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
package gqlexec

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/cardinalhq/apqgate/internal/logctx"
)

// Upstream forwards requests to a remote GraphQL endpoint.
type Upstream struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
}

var _ http.Handler = (*Upstream)(nil)

// NewUpstream returns a proxy to rawURL. Requests are sent to exactly that
// URL; only the query string of the inbound request is kept.
func NewUpstream(rawURL string) (*Upstream, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url %q: %w", rawURL, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("invalid upstream url %q: scheme must be http or https", rawURL)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q: missing host", rawURL)
	}

	u := &Upstream{target: target}
	u.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = target.Path
			pr.Out.URL.RawPath = target.RawPath
			pr.Out.URL.RawQuery = pr.In.URL.RawQuery
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logctx.FromContext(r.Context()).Error("Upstream request failed",
				slog.String("upstream", target.Redacted()), slog.Any("error", err))
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}
	return u, nil
}

func (u *Upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.proxy.ServeHTTP(w, r)
}

// Target returns the upstream URL with any password redacted.
func (u *Upstream) Target() string {
	return u.target.Redacted()
}

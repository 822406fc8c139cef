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
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"

	"github.com/cardinalhq/apqgate/internal/logctx"
	"github.com/cardinalhq/apqgate/internal/querycache"
)

// ScopeFunc returns the deployment scope a request belongs to.
type ScopeFunc func(r *http.Request) string

var validScope = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// HeaderScope reads the scope from header. Missing or invalid values map to fallback.
func HeaderScope(header, fallback string) ScopeFunc {
	return func(r *http.Request) string {
		if v := r.Header.Get(header); validScope.MatchString(v) {
			return v
		}
		return fallback
	}
}

// Config configures an Interceptor.
type Config struct {
	// StatusCodes are used when Statuses is nil or fails.
	StatusCodes StatusCodes

	// Statuses resolves per-scope status codes. Optional.
	Statuses StatusSource

	// Scope selects the cache namespace of a request. nil disables scoping,
	// in which case entries are stored under apq_<hash> directly.
	Scope ScopeFunc

	// ErrorHandler handles malformed payloads and cache failures.
	// Defaults to DefaultErrorHandler.
	ErrorHandler ErrorHandlerFunc

	// MaxBodyBytes limits a POST body after decompression.
	// Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// Interceptor applies the persisted query protocol around a GraphQL handler.
type Interceptor struct {
	cache    querycache.Cache
	fallback StatusCodes
	statuses StatusSource
	scopeOf  ScopeFunc
	onError  ErrorHandlerFunc
	maxBody  int64
}

// New returns an Interceptor that keeps persisted queries in cache.
func New(cache querycache.Cache, cfg Config) *Interceptor {
	i := &Interceptor{
		cache:    cache,
		fallback: cfg.StatusCodes.WithDefaults(),
		statuses: cfg.Statuses,
		scopeOf:  cfg.Scope,
		onError:  cfg.ErrorHandler,
		maxBody:  cfg.MaxBodyBytes,
	}
	if i.maxBody <= 0 {
		i.maxBody = DefaultMaxBodyBytes
	}
	if i.statuses == nil {
		i.statuses = StaticStatusCodes(i.fallback)
	}
	if i.onError == nil {
		i.onError = DefaultErrorHandler
	}
	return i
}

// Rejection is a terminal protocol response; execution must not run.
type Rejection struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Write sends the rejection to w.
func (rj *Rejection) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", rj.ContentType)
	w.WriteHeader(rj.StatusCode)
	_, _ = w.Write(rj.Body)
}

// Resolution is the outcome of the pre-phase.
type Resolution struct {
	// Request is the request to execute. It differs from the inbound request
	// when a cached query was injected.
	Request *http.Request

	// Envelope is the payload as the client sent it.
	Envelope *Envelope

	// Scope is the scope the request was resolved in.
	Scope string

	// Rejection is set when the request must be answered without execution.
	Rejection *Rejection

	// Injected reports whether the query came from the cache.
	Injected bool

	// snapshot of the executed request, re-parsed by the post-phase
	method string
	body   []byte
	params url.Values
}

// RunsPostPhase reports whether ValidateAndStore has anything to do for this
// resolution, that is whether the executed request carries a query.
func (res *Resolution) RunsPostPhase() bool {
	return res.Rejection == nil && (res.Envelope.HasQuery() || res.Injected)
}

func (res *Resolution) executedEnvelope() (*Envelope, error) {
	if res.method == http.MethodPost {
		return decodeBody(res.body)
	}
	return decodeParams(res.params)
}

func (i *Interceptor) scope(r *http.Request) string {
	if i.scopeOf == nil {
		return ""
	}
	return i.scopeOf(r)
}

func (i *Interceptor) cacheFor(scope string) querycache.Cache {
	if i.scopeOf == nil {
		return i.cache
	}
	return querycache.Scoped(i.cache, scope, ScopeTag(scope))
}

func (i *Interceptor) statusCodes(ctx context.Context, scope string) StatusCodes {
	codes, err := i.statuses.StatusCodes(ctx, scope)
	if err != nil {
		logctx.FromContext(ctx).Warn("Failed to resolve status codes, using configured defaults",
			slog.String("scope", scope), slog.Any("error", err))
		return i.fallback
	}
	return codes.WithDefaults()
}

// ResolveQuery runs the pre-phase for r.
//
// A request with a query, or with neither query nor hash, passes through
// unchanged. A hash-only request is resolved from the cache: on a hit the
// returned Resolution carries a rewritten request holding the cached query,
// on a miss it carries a not-found Rejection.
func (i *Interceptor) ResolveQuery(r *http.Request) (*Resolution, error) {
	env, err := readEnvelope(r, i.maxBody)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()
	res := &Resolution{
		Request:  r,
		Envelope: env,
		Scope:    i.scope(r),
	}
	res.snapshot(env)

	hash := env.Hash()
	if env.passthrough || env.HasQuery() || hash == "" {
		return res, nil
	}

	logger := logctx.FromContext(ctx).With(slog.String("scope", res.Scope), slog.String("hash", hash))

	query, found, err := i.cacheFor(res.Scope).Load(ctx, CacheKey(hash))
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %w", ErrCacheUnavailable, CacheKey(hash), err)
	}
	if !found {
		lookupCounter.Add(ctx, 1, missAttrs)
		logger.Debug("Persisted query not found")
		res.Rejection = &Rejection{
			StatusCode:  i.statusCodes(ctx, res.Scope).NotFound(r.Method),
			ContentType: "application/json",
			Body:        notFoundBody,
		}
		return res, nil
	}
	lookupCounter.Add(ctx, 1, hitAttrs)
	logger.Debug("Persisted query resolved from cache")

	out, body, err := env.withQuery(r, query)
	if err != nil {
		return nil, err
	}
	res.Request = out
	res.Injected = true
	res.method = env.method
	res.body = body
	res.params = out.URL.Query()
	return res, nil
}

func (res *Resolution) snapshot(env *Envelope) {
	res.method = env.method
	res.body = env.raw
	res.params = env.params
}

// Response is an executed GraphQL response as seen by the post-phase.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ValidateAndStore runs the post-phase for an executed request.
//
// When the client declared a hash that does not match the executed query, the
// response is replaced by a hash mismatch error. Otherwise the query is stored
// under its own hash unless it is cached already. resp is returned unchanged
// in every other case.
func (i *Interceptor) ValidateAndStore(ctx context.Context, res *Resolution, resp *Response) (*Response, error) {
	if !res.RunsPostPhase() {
		return resp, nil
	}

	env, err := res.executedEnvelope()
	if err != nil {
		return nil, err
	}
	if !env.HasQuery() {
		return resp, nil
	}

	logger := logctx.FromContext(ctx).With(slog.String("scope", res.Scope))

	computed := HashQuery(env.Query)
	if declared := env.Hash(); declared != "" && declared != computed {
		mismatchCounter.Add(ctx, 1)
		logger.Debug("Declared hash does not match query",
			slog.String("hash", declared), slog.String("computed", computed))
		return mismatchResponse(resp, i.statusCodes(ctx, res.Scope).Mismatch(res.Request.Method)), nil
	}

	if _, err := i.persist(ctx, res.Scope, computed, env.Query); err != nil {
		return nil, err
	}
	return resp, nil
}

// Persist stores query in scope unless it is cached already, and reports
// whether it wrote a new entry. Scope is ignored when scoping is disabled.
func (i *Interceptor) Persist(ctx context.Context, scope, query string) (bool, error) {
	return i.persist(ctx, scope, HashQuery(query), query)
}

func (i *Interceptor) persist(ctx context.Context, scope, hash, query string) (bool, error) {
	cache := i.cacheFor(scope)
	key := CacheKey(hash)

	_, found, err := cache.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: loading %s: %w", ErrCacheUnavailable, key, err)
	}
	if found {
		return false, nil
	}
	if err := cache.Save(ctx, query, key, []string{CacheTag}); err != nil {
		return false, fmt.Errorf("%w: saving %s: %w", ErrCacheUnavailable, key, err)
	}
	storeCounter.Add(ctx, 1)
	logctx.FromContext(ctx).Debug("Persisted query stored",
		slog.String("scope", scope), slog.String("hash", hash))
	return true, nil
}

func mismatchResponse(resp *Response, status int) *Response {
	header := http.Header{}
	if resp != nil && resp.Header != nil {
		header = resp.Header.Clone()
	}
	header.Del("Content-Length")
	header.Del("Content-Encoding")
	header.Set("Content-Type", "text/plain; charset=utf-8")
	return &Response{
		StatusCode: status,
		Header:     header,
		Body:       []byte(MismatchMessage),
	}
}

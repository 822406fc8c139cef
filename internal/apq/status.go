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
	"net/http"
)

// Defaults follow apollo-server, which answers 400 for GET and 500 for POST.
const (
	DefaultNotFoundGET  = http.StatusBadRequest
	DefaultNotFoundPOST = http.StatusInternalServerError
	DefaultMismatchGET  = http.StatusBadRequest
	DefaultMismatchPOST = http.StatusInternalServerError
)

// StatusCodes holds the HTTP status codes used for protocol rejections.
// A zero field means "use the default".
type StatusCodes struct {
	NotFoundGET  int `mapstructure:"not_found_get" json:"not_found_get"`
	NotFoundPOST int `mapstructure:"not_found_post" json:"not_found_post"`
	MismatchGET  int `mapstructure:"mismatch_get" json:"mismatch_get"`
	MismatchPOST int `mapstructure:"mismatch_post" json:"mismatch_post"`
}

// DefaultStatusCodes returns the built-in status codes.
func DefaultStatusCodes() StatusCodes {
	return StatusCodes{
		NotFoundGET:  DefaultNotFoundGET,
		NotFoundPOST: DefaultNotFoundPOST,
		MismatchGET:  DefaultMismatchGET,
		MismatchPOST: DefaultMismatchPOST,
	}
}

// WithDefaults fills every unset field from DefaultStatusCodes.
func (s StatusCodes) WithDefaults() StatusCodes {
	d := DefaultStatusCodes()
	if s.NotFoundGET == 0 {
		s.NotFoundGET = d.NotFoundGET
	}
	if s.NotFoundPOST == 0 {
		s.NotFoundPOST = d.NotFoundPOST
	}
	if s.MismatchGET == 0 {
		s.MismatchGET = d.MismatchGET
	}
	if s.MismatchPOST == 0 {
		s.MismatchPOST = d.MismatchPOST
	}
	return s
}

// NotFound returns the status for a hash-only request whose query is not cached.
func (s StatusCodes) NotFound(method string) int {
	if method == http.MethodPost {
		return s.NotFoundPOST
	}
	return s.NotFoundGET
}

// Mismatch returns the status for a request whose hash does not match its query.
func (s StatusCodes) Mismatch(method string) int {
	if method == http.MethodPost {
		return s.MismatchPOST
	}
	return s.MismatchGET
}

// StatusSource resolves the status codes that apply to a scope.
type StatusSource interface {
	StatusCodes(ctx context.Context, scope string) (StatusCodes, error)
}

// StaticStatusCodes is a StatusSource that ignores the scope.
type StaticStatusCodes StatusCodes

var _ StatusSource = StaticStatusCodes{}

func (s StaticStatusCodes) StatusCodes(context.Context, string) (StatusCodes, error) {
	return StatusCodes(s).WithDefaults(), nil
}

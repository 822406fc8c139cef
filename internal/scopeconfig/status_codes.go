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
package scopeconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/apqgate/internal/apq"
)

// StatusOverrides is a partial set of persisted query status codes.
// Stored in DB as: {"not_found_get": 404, "mismatch_post": 409}
// Nil fields inherit from the next level of the fallback chain.
type StatusOverrides struct {
	NotFoundGET  *int `json:"not_found_get,omitempty"`
	NotFoundPOST *int `json:"not_found_post,omitempty"`
	MismatchGET  *int `json:"mismatch_get,omitempty"`
	MismatchPOST *int `json:"mismatch_post,omitempty"`
}

func (o StatusOverrides) fields() []*int {
	return []*int{o.NotFoundGET, o.NotFoundPOST, o.MismatchGET, o.MismatchPOST}
}

// IsEmpty reports whether no field is overridden.
func (o StatusOverrides) IsEmpty() bool {
	for _, f := range o.fields() {
		if f != nil {
			return false
		}
	}
	return true
}

// Validate checks that every override is a valid HTTP status code.
func (o StatusOverrides) Validate() error {
	for _, f := range o.fields() {
		if f != nil && (*f < 100 || *f > 599) {
			return fmt.Errorf("invalid HTTP status code %d", *f)
		}
	}
	return nil
}

// Merge returns o with every field set in other replaced.
func (o StatusOverrides) Merge(other StatusOverrides) StatusOverrides {
	if other.NotFoundGET != nil {
		o.NotFoundGET = other.NotFoundGET
	}
	if other.NotFoundPOST != nil {
		o.NotFoundPOST = other.NotFoundPOST
	}
	if other.MismatchGET != nil {
		o.MismatchGET = other.MismatchGET
	}
	if other.MismatchPOST != nil {
		o.MismatchPOST = other.MismatchPOST
	}
	return o
}

func (o StatusOverrides) apply(codes apq.StatusCodes) apq.StatusCodes {
	if o.NotFoundGET != nil {
		codes.NotFoundGET = *o.NotFoundGET
	}
	if o.NotFoundPOST != nil {
		codes.NotFoundPOST = *o.NotFoundPOST
	}
	if o.MismatchGET != nil {
		codes.MismatchGET = *o.MismatchGET
	}
	if o.MismatchPOST != nil {
		codes.MismatchPOST = *o.MismatchPOST
	}
	return codes
}

// GetStatusOverrides returns the overrides stored for scope alone.
func (s *Service) GetStatusOverrides(ctx context.Context, scope string) (StatusOverrides, error) {
	var o StatusOverrides
	val, err := s.getConfigCached(ctx, scope, configKeyStatusCodes)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, nil
	}
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(val, &o); err != nil {
		return o, fmt.Errorf("scope %s: invalid %s: %w", scope, configKeyStatusCodes, err)
	}
	return o, nil
}

// StatusCodes resolves the status codes for scope, field by field:
// scope -> default scope -> static codes -> hardcoded defaults.
func (s *Service) StatusCodes(ctx context.Context, scope string) (apq.StatusCodes, error) {
	codes := s.static

	def, err := s.GetStatusOverrides(ctx, s.defaultScope)
	if err != nil {
		return apq.StatusCodes{}, err
	}
	codes = def.apply(codes)

	if scope != s.defaultScope {
		o, err := s.GetStatusOverrides(ctx, scope)
		if err != nil {
			return apq.StatusCodes{}, err
		}
		codes = o.apply(codes)
	}

	return codes.WithDefaults(), nil
}

// SetStatusOverrides merges o into the overrides stored for scope.
func (s *Service) SetStatusOverrides(ctx context.Context, scope string, o StatusOverrides) error {
	if err := o.Validate(); err != nil {
		return err
	}
	current, err := s.GetStatusOverrides(ctx, scope)
	if err != nil {
		return err
	}
	val, err := json.Marshal(current.Merge(o))
	if err != nil {
		return err
	}
	return s.setConfig(ctx, scope, configKeyStatusCodes, val)
}

// DeleteStatusOverrides removes every override stored for scope.
func (s *Service) DeleteStatusOverrides(ctx context.Context, scope string) error {
	return s.deleteConfig(ctx, scope, configKeyStatusCodes)
}

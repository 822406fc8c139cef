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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	lookupCounter   otelmetric.Int64Counter
	storeCounter    otelmetric.Int64Counter
	mismatchCounter otelmetric.Int64Counter

	hitAttrs  = otelmetric.WithAttributes(attribute.String("result", "hit"))
	missAttrs = otelmetric.WithAttributes(attribute.String("result", "miss"))
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/apqgate/internal/apq")

	var err error
	lookupCounter, err = meter.Int64Counter(
		"apqgate.apq.lookups",
		otelmetric.WithDescription("Number of hash-only requests looked up in the persisted query cache"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create apq.lookups counter: %w", err))
	}

	storeCounter, err = meter.Int64Counter(
		"apqgate.apq.stores",
		otelmetric.WithDescription("Number of queries written to the persisted query cache"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create apq.stores counter: %w", err))
	}

	mismatchCounter, err = meter.Int64Counter(
		"apqgate.apq.mismatches",
		otelmetric.WithDescription("Number of requests rejected because the declared hash did not match the query"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create apq.mismatches counter: %w", err))
	}
}

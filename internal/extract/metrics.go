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

package extract

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/cardinalhq/commonmeta/internal/extract")

	extractedCounter metric.Int64Counter
	mergedCounter    metric.Int64Counter
	failedCounter    metric.Int64Counter
	extractDuration  metric.Float64Histogram
)

func init() {
	var err error

	extractedCounter, err = meter.Int64Counter(
		"commonmeta.files.extracted",
		metric.WithDescription("Number of common metadata files written"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create files.extracted counter: %w", err))
	}

	mergedCounter, err = meter.Int64Counter(
		"commonmeta.files.merged",
		metric.WithDescription("Number of common metadata files merged with a prior file"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create files.merged counter: %w", err))
	}

	failedCounter, err = meter.Int64Counter(
		"commonmeta.files.failed",
		metric.WithDescription("Number of data files whose extraction failed"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create files.failed counter: %w", err))
	}

	extractDuration, err = meter.Float64Histogram(
		"commonmeta.extract.duration",
		metric.WithUnit("s"),
		metric.WithDescription("The duration in seconds to extract and write one common metadata file"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create extract.duration histogram: %w", err))
	}
}

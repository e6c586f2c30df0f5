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

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/cardinalhq/commonmeta/internal/helpers"
)

// setupTelemetry installs the default logger, writing text records to w,
// and starts OpenTelemetry export when it is enabled in the environment.
// Every record carries the service name and runID. The returned function
// flushes and stops the exporters.
func setupTelemetry(ctx context.Context, runID string, debug bool, w io.Writer) (context.Context, func() error, error) {
	f := func() error {
		return nil
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug || helpers.GetBoolEnv("DEBUG", false) {
		opts.Level = slog.LevelDebug
	}

	if os.Getenv("OTEL_SERVICE_NAME") != "" && helpers.GetBoolEnv("ENABLE_OTLP_TELEMETRY", false) {
		slog.SetDefault(slog.New(slogmulti.Fanout(
			slog.NewTextHandler(w, opts),
			otelslog.NewHandler(serviceName),
		)).With(
			slog.String("service", serviceName),
			slog.String("runID", runID),
		))
		slog.Info("OpenTelemetry exporting enabled")

		otelShutdown, err := telemetry.SetupOTelSDK(ctx)
		if err != nil {
			return ctx, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
		}

		f = func() error {
			slog.Debug("Shutting down OpenTelemetry SDK")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return otelShutdown(ctx)
		}
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(w, opts)).With(
			slog.String("service", serviceName),
			slog.String("runID", runID),
		))
	}

	return ctx, f, nil
}

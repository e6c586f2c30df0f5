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
	"context"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/commonmeta/internal/footer"
	"github.com/cardinalhq/commonmeta/internal/logctx"
	"github.com/cardinalhq/commonmeta/internal/metafile"
)

// Options control how an Extractor treats an existing metadata file.
type Options struct {
	// Overwrite replaces an existing metadata file without reading it.
	Overwrite bool
	// KeyValueMerge resolves conflicting key-value metadata when merging
	// with an existing metadata file.
	KeyValueMerge footer.KeyValueMergeStrategy
}

// Result describes one metadata file produced by Extract.
type Result struct {
	DataFile     string
	OutputPath   string
	Merged       bool
	Size         int64
	FooterLength int64
	Digest       uint64
	// Unchanged is set when a merge rewrote the prior file with identical bytes.
	Unchanged bool
	Duration  time.Duration
}

// Extractor writes common metadata files and remembers which output paths
// it has produced. It is not safe for concurrent use: parallel callers
// would have to hold one lock per output path across the read, merge and
// write of Extract.
type Extractor struct {
	opts      Options
	processed mapset.Set[string]
	order     []string
}

func NewExtractor(opts Options) *Extractor {
	if opts.KeyValueMerge == "" {
		opts.KeyValueMerge = footer.KeyValueStrict
	}
	return &Extractor{
		opts:      opts,
		processed: mapset.NewThreadUnsafeSet[string](),
	}
}

// Processed reports whether outPath was already produced in this run.
func (e *Extractor) Processed(outPath string) bool {
	return e.processed.Contains(outPath)
}

// ProcessedPaths lists the produced output paths in the order they were written.
func (e *Extractor) ProcessedPaths() []string {
	return append([]string(nil), e.order...)
}

// Extract reads the footer of dataFile and writes it to outPath, merged with
// the metadata file already at outPath unless the extractor overwrites.
// scanRoot is the common root of the merged footers.
func (e *Extractor) Extract(ctx context.Context, scanRoot, dataFile, outPath string) (*Result, error) {
	start := time.Now()
	ll := logctx.FromContext(ctx).With(slog.String("dataFile", dataFile), slog.String("outputPath", outPath))

	current, err := footer.ReadDataFile(dataFile)
	if err != nil {
		return nil, &CorruptInputError{Path: dataFile, Err: err}
	}

	result := &Result{DataFile: dataFile, OutputPath: outPath}
	out := current
	var priorDigest uint64

	if !e.opts.Overwrite {
		exists, err := metafile.Exists(outPath)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", outPath, err)
		}
		if exists {
			prior, err := metafile.Read(outPath)
			if err != nil {
				return nil, &CorruptInputError{Path: outPath, Err: err}
			}
			priorDigest, err = metafile.Digest(outPath)
			if err != nil {
				return nil, fmt.Errorf("failed to hash %s: %w", outPath, err)
			}

			out, err = footer.Merge(scanRoot, e.opts.KeyValueMerge, prior, current)
			if err != nil {
				return nil, fmt.Errorf("failed to merge %s into %s: %w", dataFile, outPath, err)
			}
			result.Merged = true
			ll.Debug("Merged with existing metadata file", slog.String("priorCreatedBy", prior.CreatedBy()))
		}
	}

	stats, err := metafile.Write(outPath, out)
	if err != nil {
		return nil, err
	}
	result.Size = stats.Size
	result.FooterLength = stats.FooterLength
	result.Digest = stats.Digest
	result.Unchanged = result.Merged && stats.Digest == priorDigest
	result.Duration = time.Since(start)

	if !e.processed.Add(outPath) {
		panic(fmt.Errorf("%w: %s", ErrDuplicateProcessing, outPath))
	}
	e.order = append(e.order, outPath)

	attrs := metric.WithAttributes(attribute.Bool("merged", result.Merged))
	extractedCounter.Add(ctx, 1, attrs)
	if result.Merged {
		mergedCounter.Add(ctx, 1)
	}
	extractDuration.Record(ctx, result.Duration.Seconds(), attrs)

	ll.Debug("Wrote common metadata file",
		slog.Bool("merged", result.Merged),
		slog.Int64("size", result.Size),
		slog.Int64("footerLength", result.FooterLength),
		slog.Duration("duration", result.Duration))

	return result, nil
}

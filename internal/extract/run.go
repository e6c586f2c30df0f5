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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/commonmeta/internal/logctx"
	"github.com/cardinalhq/commonmeta/internal/metafile"
	"github.com/cardinalhq/commonmeta/internal/scanner"
	"github.com/cardinalhq/commonmeta/internal/tabletype"
)

// DefaultDataSuffix is the file name suffix of Parquet data files.
const DefaultDataSuffix = ".parquet"

// RunConfig describes one scan.
type RunConfig struct {
	RunID    string
	ScanRoot string
	// DataSuffix selects data files, compared case-insensitively.
	DataSuffix string
	// MetadataFileName is the name of the file written in each table type directory.
	MetadataFileName string
	ErrorPolicy      ErrorPolicy
	Options
}

// Summary is what a scan did.
type Summary struct {
	RunID       string
	ScanRoot    string
	Directories int
	DataFiles   int
	Results     []*Result
	Failures    []error
}

// Run walks cfg.ScanRoot and writes one common metadata file per table
// type directory. Progress lines go to out: every directory entered, every
// data file considered, and every metadata file about to be written.
//
// Only the first data file of any directory is looked at; the rest of that
// directory, subdirectories included, is skipped.
//
// With ErrorPolicyContinue, failed extractions are collected and returned
// together once the walk completes. The summary is returned in either case.
func Run(ctx context.Context, cfg RunConfig, out io.Writer) (*Summary, error) {
	if cfg.DataSuffix == "" {
		cfg.DataSuffix = DefaultDataSuffix
	}
	if cfg.MetadataFileName == "" {
		cfg.MetadataFileName = metafile.DefaultFileName
	}

	root, err := filepath.Abs(cfg.ScanRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scan root %s: %w", cfg.ScanRoot, err)
	}
	rootInfo, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scan root %s: %w", root, err)
	}

	ctx = logctx.WithAttrs(ctx, slog.String("scanRoot", root))

	v := &treeVisitor{
		ctx:       ctx,
		cfg:       cfg,
		root:      root,
		rootInfo:  rootInfo,
		suffix:    strings.ToLower(cfg.DataSuffix),
		out:       out,
		extractor: NewExtractor(cfg.Options),
		summary:   &Summary{RunID: cfg.RunID, ScanRoot: root},
	}

	if _, err := fmt.Fprintf(out, "Directory tree root node: \"%s\"\n\n", root); err != nil {
		return v.summary, err
	}

	if err := scanner.Walk(ctx, root, v); err != nil {
		return v.summary, err
	}
	return v.summary, v.failures.ErrorOrNil()
}

type treeVisitor struct {
	ctx       context.Context
	cfg       RunConfig
	root      string
	rootInfo  fs.FileInfo
	suffix    string
	out       io.Writer
	extractor *Extractor
	summary   *Summary
	failures  *multierror.Error
}

var _ scanner.Visitor = (*treeVisitor)(nil)

func (v *treeVisitor) PreVisitDirectory(dir string, _ fs.FileInfo) (scanner.Result, error) {
	v.summary.Directories++
	if _, err := fmt.Fprintf(v.out, "%s%c\n", dir, filepath.Separator); err != nil {
		return scanner.Terminate, err
	}
	return scanner.Continue, nil
}

func (v *treeVisitor) VisitFile(path string, _ fs.FileInfo) (scanner.Result, error) {
	if !strings.HasSuffix(strings.ToLower(filepath.Base(path)), v.suffix) {
		return scanner.Continue, nil
	}
	v.summary.DataFiles++
	if _, err := fmt.Fprintln(v.out, path); err != nil {
		return scanner.Terminate, err
	}

	baseDir, err := tabletype.Resolve(v.root, filepath.Dir(path))
	if err != nil {
		return scanner.Terminate, err
	}
	outPath := tabletype.MetadataPath(baseDir, v.cfg.MetadataFileName)

	if !v.extractor.Processed(outPath) {
		if _, err := fmt.Fprintln(v.out, outPath); err != nil {
			return scanner.Terminate, err
		}
		res, err := v.extractor.Extract(v.ctx, v.root, path, outPath)
		if err != nil {
			if r, ferr := v.fail(path, err); ferr != nil {
				return r, ferr
			}
		} else {
			v.summary.Results = append(v.summary.Results, res)
		}
	}

	return scanner.SkipSiblings, nil
}

func (v *treeVisitor) VisitFailed(path string, err error) (scanner.Result, error) {
	return v.fail(path, err)
}

func (v *treeVisitor) PostVisitDirectory(dir string, err error) (scanner.Result, error) {
	if err != nil {
		if res, ferr := v.fail(dir, err); ferr != nil {
			return res, ferr
		}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return v.fail(dir, err)
	}
	if os.SameFile(info, v.rootInfo) {
		return scanner.Terminate, nil
	}
	return scanner.Continue, nil
}

// fail applies the error policy. Under ErrorPolicyContinue the failure is
// recorded and the walk carries on with the next entry.
func (v *treeVisitor) fail(path string, err error) (scanner.Result, error) {
	failedCounter.Add(v.ctx, 1)

	if v.cfg.ErrorPolicy != ErrorPolicyContinue || isFatal(err) {
		return scanner.Terminate, err
	}

	logctx.FromContext(v.ctx).Warn("Skipping after failure", slog.String("path", path), slog.Any("error", err))
	v.failures = multierror.Append(v.failures, err)
	v.summary.Failures = append(v.summary.Failures, err)
	return scanner.Continue, nil
}

func isFatal(err error) bool {
	return errors.Is(err, tabletype.ErrInvalidTreeStructure) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

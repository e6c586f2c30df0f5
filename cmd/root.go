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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/commonmeta/config"
	"github.com/cardinalhq/commonmeta/internal/extract"
	"github.com/cardinalhq/commonmeta/internal/idgen"
	"github.com/cardinalhq/commonmeta/internal/runreport"
)

const serviceName = "commonmeta"

var (
	ErrUsage         = errors.New("usage error")
	ErrPathNotFound  = errors.New("path not found")
	ErrNotADirectory = errors.New("not a directory")
)

// NewRootCmd builds the commonmeta command tree.
func NewRootCmd() *cobra.Command {
	var configFile, envFile string
	def := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "commonmeta [-o] <directory-path>",
		Short: "Write Parquet common metadata files for a partitioned directory tree",
		Long: `Scan a directory tree of Parquet files and write one _common_metadata file
per table type directory, the directories directly under the scanned root.
Each file carries the schema and key-value metadata of the data beneath it,
merged with the metadata file left by an earlier run unless -o is given.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: please supply a directory path to the root node of the directory tree to be scanned", ErrUsage)
			}
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			return runScan(c, configFile, envFile, args[0])
		},
	}

	flags := rootCmd.Flags()
	flags.BoolP("overwrite", "o", false, "Replace existing metadata files instead of merging with them")
	flags.StringVarP(&configFile, "config", "c", "", "Path to a commonmeta.yaml configuration file")
	flags.StringVar(&envFile, "env-file", "", "Path to a dotenv file with COMMONMETA_* settings")
	flags.String("suffix", def.DataSuffix, "File name suffix of data files (case-insensitive)")
	flags.String("metadata-file", def.MetadataFile, "Name of the metadata file written in each table type directory")
	flags.String("error-policy", def.ErrorPolicy, "What to do when a data file cannot be read: abort or continue")
	flags.String("kv-merge", def.KVMerge, "How to merge conflicting key-value metadata: strict, first or last")
	flags.String("state-dir", "", "Directory for run reports (default $HOME)")
	flags.Bool("report", false, "Write a YAML run report to the state directory")
	flags.Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(newInspectCmd())
	return rootCmd
}

// Execute runs the command line and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	ctx, cancel := handleSignals(context.Background())
	err := NewRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func runScan(c *cobra.Command, configFile, envFile, dirArg string) error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	cfg, err := config.Load(configFile, c.Flags())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	c.SilenceUsage = true

	runID := idgen.NewRunID()
	ctx, shutdown, err := setupTelemetry(c.Context(), runID, cfg.Debug, c.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(); err != nil {
			slog.Warn("Failed to shut down telemetry", slog.Any("error", err))
		}
	}()

	root, err := validateScanRoot(dirArg)
	if err != nil {
		slog.Error("Invalid scan root", slog.String("path", dirArg), slog.Any("error", err))
		return err
	}

	policy, opts, err := cfg.RunOptions()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	started := time.Now()
	summary, runErr := extract.Run(ctx, extract.RunConfig{
		RunID:            runID,
		ScanRoot:         root,
		DataSuffix:       cfg.DataSuffix,
		MetadataFileName: cfg.MetadataFile,
		ErrorPolicy:      policy,
		Options:          opts,
	}, c.OutOrStdout())

	if summary != nil {
		logSummary(summary, time.Since(started))
		if cfg.Report {
			path, err := runreport.Write(cfg.StateDir, runreport.New(summary, opts.Overwrite, started, time.Now(), runErr))
			if err != nil {
				slog.Warn("Failed to write run report", slog.Any("error", err))
			} else {
				slog.Info("Wrote run report", slog.String("path", path))
			}
		}
	}

	if runErr != nil {
		slog.Error("Program terminated due to error", slog.Any("error", runErr))
		return runErr
	}
	return nil
}

// validateScanRoot checks that p exists and is a directory, and returns it
// as an absolute path.
func validateScanRoot(p string) (string, error) {
	info, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: directory path %q does not exist", ErrPathNotFound, p)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat %q: %w", p, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: file path %q is not a directory", ErrNotADirectory, p)
	}
	return filepath.Abs(p)
}

func logSummary(s *extract.Summary, elapsed time.Duration) {
	merged, unchanged := 0, 0
	for _, r := range s.Results {
		if r.Merged {
			merged++
		}
		if r.Unchanged {
			unchanged++
		}
	}
	slog.Info("Scan complete",
		slog.String("scanRoot", s.ScanRoot),
		slog.Int("directories", s.Directories),
		slog.Int("dataFiles", s.DataFiles),
		slog.Int("metadataFiles", len(s.Results)),
		slog.Int("merged", merged),
		slog.Int("unchanged", unchanged),
		slog.Int("failures", len(s.Failures)),
		slog.Duration("elapsed", elapsed))
	for _, f := range s.Failures {
		slog.Warn("Extraction failed", slog.Any("error", f))
	}
}

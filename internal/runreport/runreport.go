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

// Package runreport records what a scan did as a YAML document in the
// program's state directory.
package runreport

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/commonmeta/internal/extract"
)

// DirName is the subdirectory of the state directory that holds reports.
const DirName = ".commonmeta"

type Report struct {
	RunID       string    `yaml:"run_id"`
	ScanRoot    string    `yaml:"scan_root"`
	StartedAt   time.Time `yaml:"started_at"`
	FinishedAt  time.Time `yaml:"finished_at"`
	Overwrite   bool      `yaml:"overwrite"`
	Directories int       `yaml:"directories"`
	DataFiles   int       `yaml:"data_files"`
	Outputs     []Output  `yaml:"outputs"`
	Failures    []string  `yaml:"failures,omitempty"`
	Error       string    `yaml:"error,omitempty"`
}

type Output struct {
	Path      string `yaml:"path"`
	DataFile  string `yaml:"data_file"`
	Merged    bool   `yaml:"merged"`
	Unchanged bool   `yaml:"unchanged"`
	Size      int64  `yaml:"size"`
	Digest    string `yaml:"digest"`
}

// New builds a report from a finished scan. runErr is the error the scan
// ended with, if any.
func New(summary *extract.Summary, overwrite bool, startedAt, finishedAt time.Time, runErr error) *Report {
	r := &Report{
		RunID:       summary.RunID,
		ScanRoot:    summary.ScanRoot,
		StartedAt:   startedAt.UTC(),
		FinishedAt:  finishedAt.UTC(),
		Overwrite:   overwrite,
		Directories: summary.Directories,
		DataFiles:   summary.DataFiles,
		Outputs:     []Output{},
	}
	for _, res := range summary.Results {
		r.Outputs = append(r.Outputs, Output{
			Path:      res.OutputPath,
			DataFile:  res.DataFile,
			Merged:    res.Merged,
			Unchanged: res.Unchanged,
			Size:      res.Size,
			Digest:    fmt.Sprintf("%016x", res.Digest),
		})
	}
	for _, f := range summary.Failures {
		r.Failures = append(r.Failures, f.Error())
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return r
}

// Write stores r as <stateDir>/.commonmeta/<run id>.yaml and returns the path.
func Write(stateDir string, r *Report) (string, error) {
	dir := filepath.Join(stateDir, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	b, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run report: %w", err)
	}

	path := filepath.Join(dir, r.RunID+".yaml")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("failed to write run report %s: %w", path, err)
	}
	return path, nil
}

// Load reads a report written by Write.
func Load(path string) (*Report, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := &Report{}
	if err := yaml.Unmarshal(b, r); err != nil {
		return nil, fmt.Errorf("failed to parse run report %s: %w", path, err)
	}
	return r, nil
}

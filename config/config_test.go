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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	def := DefaultConfig()
	fs.BoolP("overwrite", "o", false, "")
	fs.String("suffix", def.DataSuffix, "")
	fs.String("metadata-file", def.MetadataFile, "")
	fs.String("error-policy", def.ErrorPolicy, "")
	fs.String("kv-merge", def.KVMerge, "")
	fs.String("state-dir", "", "")
	fs.Bool("report", false, "")
	fs.Bool("debug", false, "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("", testFlags(t))
	require.NoError(t, err)

	want := DefaultConfig()
	want.StateDir = home
	assert.Equal(t, want, cfg)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("COMMONMETA_OVERWRITE", "true")
	t.Setenv("COMMONMETA_ERROR_POLICY", "continue")
	t.Setenv("COMMONMETA_KV_MERGE", "last")
	t.Setenv("COMMONMETA_METADATA_FILE", "_metadata_summary")

	cfg, err := Load("", testFlags(t))
	require.NoError(t, err)

	assert.True(t, cfg.Overwrite)
	assert.Equal(t, "continue", cfg.ErrorPolicy)
	assert.Equal(t, "last", cfg.KVMerge)
	assert.Equal(t, "_metadata_summary", cfg.MetadataFile)

	policy, opts, err := cfg.RunOptions()
	require.NoError(t, err)
	assert.Equal(t, "continue", string(policy))
	assert.True(t, opts.Overwrite)
	assert.Equal(t, "last", string(opts.KeyValueMerge))
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	stateDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "commonmeta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"data_suffix: .pq\n"+
			"error_policy: continue\n"+
			"state_dir: "+stateDir+"\n"+
			"report: true\n"), 0o644))

	cfg, err := Load(path, testFlags(t))
	require.NoError(t, err)

	assert.Equal(t, ".pq", cfg.DataSuffix)
	assert.Equal(t, "continue", cfg.ErrorPolicy)
	assert.Equal(t, stateDir, cfg.StateDir)
	assert.True(t, cfg.Report)
	assert.False(t, cfg.Overwrite)
}

func TestLoadFlagsWin(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("COMMONMETA_ERROR_POLICY", "continue")

	cfg, err := Load("", testFlags(t, "-o", "--error-policy=abort", "--kv-merge", "first"))
	require.NoError(t, err)

	assert.True(t, cfg.Overwrite)
	assert.Equal(t, "abort", cfg.ErrorPolicy)
	assert.Equal(t, "first", cfg.KVMerge)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		env   string
		value string
	}{
		{"COMMONMETA_ERROR_POLICY", "retry"},
		{"COMMONMETA_KV_MERGE", "union"},
		{"COMMONMETA_METADATA_FILE", "sub/_common_metadata"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := Load("", testFlags(t))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestDefaultStateDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.Equal(t, ".", DefaultStateDir(""))
	assert.Equal(t, ".", DefaultStateDir(filepath.Join(dir, "missing")))
	assert.Equal(t, ".", DefaultStateDir(file))
	assert.Equal(t, dir, DefaultStateDir(dir))
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("COMMONMETA_KV_MERGE", "first")
	for _, name := range []string{"COMMONMETA_ERROR_POLICY", "COMMONMETA_DATA_SUFFIX"} {
		prev, had := os.LookupEnv(name)
		require.NoError(t, os.Unsetenv(name))
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(name, prev)
			} else {
				_ = os.Unsetenv(name)
			}
		})
	}

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"COMMONMETA_ERROR_POLICY=continue\nCOMMONMETA_DATA_SUFFIX=.parq\nCOMMONMETA_KV_MERGE=last\n"), 0o644))

	require.NoError(t, LoadEnvFile(envFile))
	cfg, err := Load("", testFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "continue", cfg.ErrorPolicy)
	assert.Equal(t, ".parq", cfg.DataSuffix)
	assert.Equal(t, "first", cfg.KVMerge, "variables already set are not overridden")

	assert.NoError(t, LoadEnvFile(""))
	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

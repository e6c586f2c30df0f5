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
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cardinalhq/commonmeta/internal/extract"
	"github.com/cardinalhq/commonmeta/internal/footer"
	"github.com/cardinalhq/commonmeta/internal/metafile"
)

// Config holds the settings of one run.
type Config struct {
	Overwrite    bool   `mapstructure:"overwrite"`
	DataSuffix   string `mapstructure:"data_suffix"`
	MetadataFile string `mapstructure:"metadata_file"`
	ErrorPolicy  string `mapstructure:"error_policy"`
	KVMerge      string `mapstructure:"kv_merge"`
	// StateDir holds auxiliary program state such as run reports.
	StateDir string `mapstructure:"state_dir"`
	Report   bool   `mapstructure:"report"`
	Debug    bool   `mapstructure:"debug"`
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"overwrite":     "overwrite",
	"suffix":        "data_suffix",
	"metadata-file": "metadata_file",
	"error-policy":  "error_policy",
	"kv-merge":      "kv_merge",
	"state-dir":     "state_dir",
	"report":        "report",
	"debug":         "debug",
}

func DefaultConfig() *Config {
	return &Config{
		DataSuffix:   extract.DefaultDataSuffix,
		MetadataFile: metafile.DefaultFileName,
		ErrorPolicy:  string(extract.ErrorPolicyAbort),
		KVMerge:      string(footer.KeyValueStrict),
	}
}

// DefaultStateDir returns home when it names an existing directory and
// "." otherwise.
func DefaultStateDir(home string) string {
	if home == "" {
		return "."
	}
	info, err := os.Stat(home)
	if err != nil || !info.IsDir() {
		return "."
	}
	return home
}

// Load reads configuration from an optional file, environment variables and
// command line flags, in increasing order of precedence.
//
// Environment variables use the prefix "COMMONMETA" and the dot character
// in keys is replaced by an underscore. For example, "error_policy" becomes
// "COMMONMETA_ERROR_POLICY". Without configFile, "commonmeta.yaml" is
// looked up in the current directory and in the home directory.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()
	home := os.Getenv("HOME")

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("commonmeta")
		v.AddConfigPath(".")
		if home != "" {
			v.AddConfigPath(home)
		}
	}
	v.SetEnvPrefix("COMMONMETA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir(home)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile adds the variables of a dotenv file to the process
// environment. Variables that are already set keep their value.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks values that cannot be caught by their type.
func (c *Config) Validate() error {
	if c.DataSuffix == "" {
		return errors.New("data_suffix must not be empty")
	}
	if c.MetadataFile == "" || strings.ContainsAny(c.MetadataFile, `/\`) {
		return fmt.Errorf("metadata_file %q must be a plain file name", c.MetadataFile)
	}
	if _, err := extract.ParseErrorPolicy(c.ErrorPolicy); err != nil {
		return err
	}
	if _, err := footer.ParseKeyValueMergeStrategy(c.KVMerge); err != nil {
		return err
	}
	return nil
}

// RunOptions converts the configuration into extraction settings.
func (c *Config) RunOptions() (extract.ErrorPolicy, extract.Options, error) {
	policy, err := extract.ParseErrorPolicy(c.ErrorPolicy)
	if err != nil {
		return "", extract.Options{}, err
	}
	strategy, err := footer.ParseKeyValueMergeStrategy(c.KVMerge)
	if err != nil {
		return "", extract.Options{}, err
	}
	return policy, extract.Options{Overwrite: c.Overwrite, KeyValueMerge: strategy}, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/turtacn/molfilter/pkg/errors"
)

// envPrefix is the environment variable prefix of every setting.
const envPrefix = "MOLFILTER"

// newViper builds a Viper instance with YAML file type, the MOLFILTER_ env
// prefix, automatic env binding and a "." → "_" key replacer, so that
// "storage.s3.endpoint" resolves to MOLFILTER_STORAGE_S3_ENDPOINT.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

// SearchPaths returns the locations searched, in order, when no explicit config
// file is given.
func SearchPaths() []string {
	paths := []string{"molfilter.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".molfilter", "config.yaml"))
	}
	return append(paths, "/etc/molfilter/config.yaml")
}

// Load builds the effective Config.
//
// With a non-empty configPath the file must exist and parse.  With an empty
// path the first existing file of SearchPaths is used, and when none exists
// the Config comes from MOLFILTER_* variables and defaults alone.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath == "" {
		for _, p := range SearchPaths() {
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				configPath = p
				break
			}
		}
	} else if _, err := os.Stat(configPath); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidParam, "config: config file not found").WithDetail(configPath)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidParam, "config: failed to read config file").WithDetail(configPath)
		}
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from MOLFILTER_* variables and defaults only.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidParam, "config: failed to unmarshal configuration")
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

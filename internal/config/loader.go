// Package config loads and validates the resolved configuration for a
// run: defaults, then .yamlr.yaml, then whatever the command line set.
package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/yamlr/yamlr/internal/logging"
	"github.com/yamlr/yamlr/internal/models"
)

var logger = logging.GetLogger("config")

// FileName is the per-project configuration file looked up in the working
// directory.
const FileName = ".yamlr.yaml"

// Load reads configPath over the defaults. An empty configPath means: use
// FileName in the working directory if present, defaults otherwise. A
// named path that does not exist is an error; the implicit one is not.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		configPath = filepath.Join(".", FileName)
	}
	if _, err := os.Stat(configPath); err != nil {
		if explicit {
			return nil, models.NewConfigError("config file %s: %v", configPath, err)
		}
		return cfg, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, models.NewConfigError("loading %s: %v", configPath, err)
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, models.NewConfigError("parsing %s: %v", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("loaded configuration from %s", configPath)
	return cfg, nil
}

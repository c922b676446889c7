package config

import (
	"os"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/daimoniac/swaudit/internal/errors"
)

// ParseFile reads and parses a swaudit.yml configuration file
func ParseFile(fs afero.Fs, path string) (*FileConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewPermanentf("config file not found: %s: %w", path, errors.ErrNotFound)
		}
		return nil, errors.NewTransientf("failed to read config file: %w", err)
	}

	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewPermanentf("failed to parse config YAML: %w", err)
	}

	return &config, nil
}

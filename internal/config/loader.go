package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/emberprof/ember/internal/safe"
)

// DefaultPath is where Load looks for a config file when none is given.
// A variable so tests can point it at a hermetic location.
var DefaultPath = "/etc/ember/config.yaml"

// Load resolves the agent configuration in layers: defaults, then the YAML
// file at path, then EMBER_* environment overrides. An empty path falls back
// to DefaultPath; a missing file at either is not an error, the remaining
// layers still apply. The resolved configuration is validated before return.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := safe.ReadFile(path, nil)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Config-less mode: defaults plus env overrides.
	case os.IsNotExist(err):
		return nil, fmt.Errorf("config file %s does not exist", path)
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

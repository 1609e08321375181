package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML config at filePath on top of the built-in defaults.
// A missing file is not an error: the defaults already form a valid config.
func Load(filePath string) (*FormConfig, error) {
	cfg := Default()

	if filePath != "" {
		yamlFile, err := os.ReadFile(filePath)
		switch {
		case os.IsNotExist(err):
			log.Printf("Config file '%s' not found, using defaults.", filePath)
		case err != nil:
			return nil, fmt.Errorf("failed to read config file '%s': %w", filePath, err)
		default:
			if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal YAML from '%s': %w", filePath, err)
			}
			log.Printf("Loaded configuration overrides from %s.", filePath)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadConfig reads path, expands environment variables in its raw text,
// and unmarshals the result into out.
func loadConfig(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return loadConfigFromString(string(data), out)
}

// loadConfigFromString expands environment variables in yamlContent and
// unmarshals the result into out. Expansion runs over the raw text before
// parsing, the way env.go's expandEnvVars already works, rather than
// walking a decoded map — YAML's own struct tags do all the typed
// decoding LoadConfig needs.
func loadConfigFromString(yamlContent string, out *Config) error {
	expanded := expandEnvVars(yamlContent)
	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the deployment client credentials spec.md §6.3 lists as
// flags (--apihost, --auth, --insecure). A config file lets a developer
// avoid typing them on every invocation, the same role a lightweight
// flow-engine CLI's YAML config plays for its own management endpoint.
type Config struct {
	APIHost  string `yaml:"apihost"`
	Auth     string `yaml:"auth"`
	Insecure bool   `yaml:"insecure"`
}

// loadConfig reads a YAML config file at path. A missing file is not an
// error: an absent config simply leaves every field at its zero value,
// letting command-line flags supply everything instead.
func loadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// merge overlays non-empty flag values onto the config file's values,
// so an explicit flag always wins over whatever a config file set.
func (c Config) merge(apihost, auth string, insecure bool) Config {
	out := c
	if apihost != "" {
		out.APIHost = apihost
	}
	if auth != "" {
		out.Auth = auth
	}
	if insecure {
		out.Insecure = insecure
	}
	return out
}

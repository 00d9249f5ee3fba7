package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds project-level settings loaded from repograph.yml.
type ProjectConfig struct {
	DBPath           string   `yaml:"dbPath,omitempty"`
	Workers          int      `yaml:"workers,omitempty"`
	MaxFileSizeBytes int64    `yaml:"maxFileSizeBytes,omitempty"`
	ParseTimeout     string   `yaml:"parseTimeout,omitempty"`
	Include          []string `yaml:"include,omitempty"`
	Exclude          []string `yaml:"exclude,omitempty"`
	Languages        []string `yaml:"languages,omitempty"`
}

// Load attempts to read repograph.yml or repograph.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"repograph.yml", "repograph.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}

// ParseTimeoutDuration parses the parseTimeout field ("10s", "500ms").
// A zero value means unset; the caller applies its default.
func (c *ProjectConfig) ParseTimeoutDuration() (time.Duration, error) {
	if c.ParseTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ParseTimeout)
	if err != nil {
		return 0, fmt.Errorf("parseTimeout: %w", err)
	}
	return d, nil
}

// Package config loads hive's process configuration from a YAML file,
// in the same gopkg.in/yaml.v3 idiom cmd/warren's apply command uses
// for its resource manifests, re-scoped here to the server's own
// startup configuration rather than a cluster resource being applied.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is hive's top-level process configuration, loaded once at
// startup and shared read-only by every component that needs it.
type Config struct {
	// DataDir roots every service's local: storage subtree
	// (<DataDir>/<service-name>).
	DataDir string `yaml:"data_dir"`

	// SandboxPoolSize is the fixed number of Sandboxes built at
	// startup.
	SandboxPoolSize int `yaml:"sandbox_pool_size"`

	HTTP  HTTPConfig  `yaml:"http"`
	Admin AdminConfig `yaml:"admin"`
	Log   LogConfig   `yaml:"log"`
}

// HTTPConfig configures the public-facing front end that dispatches
// incoming requests into services (pkg/httpfront).
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// AdminConfig configures the control-plane REST API
// (pkg/adminapi) used by `cmd/hive service ...`.
type AdminConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// JWTSigningKey signs and verifies the bearer tokens admin API
	// clients present; required, never defaulted, since a default
	// would be a shared secret baked into every install.
	JWTSigningKey string `yaml:"jwt_signing_key"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"json_output"`
}

// Default returns a Config set up for local development, except that
// Admin.JWTSigningKey is left empty: Validate rejects the defaults
// until a signing key is set.
func Default() *Config {
	return &Config{
		DataDir:         "./data",
		SandboxPoolSize: 4,
		HTTP:            HTTPConfig{ListenAddr: ":8080"},
		Admin:           AdminConfig{ListenAddr: ":9090"},
		Log:             LogConfig{Level: "info", JSONOutput: false},
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() so a partial file only overrides the fields it sets.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration hive cannot safely start with.
func (c *Config) Validate() error {
	if c.SandboxPoolSize < 1 {
		return fmt.Errorf("sandbox_pool_size must be at least 1, got %d", c.SandboxPoolSize)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Admin.JWTSigningKey == "" {
		return fmt.Errorf("admin.jwt_signing_key must be set")
	}
	return nil
}

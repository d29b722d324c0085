package api

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a deployctl.yaml, sets Dir/FilePath, fills defaults
// and validates it.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	cfg.FilePath = absPath
	cfg.Dir = filepath.Dir(absPath)

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", filename, err)
	}

	return &cfg, nil
}

// applyDefaults fills the knobs the original tool hard-coded.
func (c *Config) applyDefaults() {
	if c.Cluster.Binary == "" {
		c.Cluster.Binary = DefaultClusterBinary
	}
	if c.Cluster.Kubectl == "" {
		c.Cluster.Kubectl = DefaultKubectl
	}
	if c.Cluster.StartTimeout == 0 {
		c.Cluster.StartTimeout = Duration(60 * time.Second)
	}
	if c.Cluster.WaitDeadline == 0 {
		c.Cluster.WaitDeadline = Duration(60 * time.Second)
	}

	if c.Deploy.Timeout == 0 {
		c.Deploy.Timeout = Duration(300 * time.Second)
	}
	if c.Deploy.PollInterval == 0 {
		c.Deploy.PollInterval = Duration(10 * time.Second)
	}
	if c.Deploy.ApplyRetries == 0 {
		c.Deploy.ApplyRetries = 3
	}
	if c.Deploy.BuildTimeout == 0 {
		c.Deploy.BuildTimeout = Duration(300 * time.Second)
	}
	if c.Deploy.LoadTimeout == 0 {
		c.Deploy.LoadTimeout = Duration(120 * time.Second)
	}

	if c.Image.Tag == "" {
		c.Image.Tag = "latest"
	}
	if len(c.Monitoring.Manifests.Include) == 0 {
		c.Monitoring.Manifests.Include = []string{"*.yaml"}
	}
}

// ResolvePath resolves a config-relative path against the config's
// directory. Absolute paths pass through unchanged.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Environment looks up an environment overlay by name.
func (c *Config) Environment(name string) (EnvironmentConfig, error) {
	env, ok := c.Environments[name]
	if !ok {
		return EnvironmentConfig{}, fmt.Errorf("unknown environment %q", name)
	}
	return env, nil
}

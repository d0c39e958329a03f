// Package config loads the service configuration from a YAML file with
// environment-variable overrides for container deployments.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	ListenAddr     string `yaml:"listen_addr"`
	ArtifactsDir   string `yaml:"artifacts_dir"`
	ArtifactPrefix string `yaml:"artifact_prefix"`
	BaseURL        string `yaml:"base_url"`

	Headless     bool   `yaml:"headless"`
	ChromePath   string `yaml:"chrome_path"`
	AutoDownload bool   `yaml:"auto_download"`
	NoSandbox    bool   `yaml:"no_sandbox"`
	Screenshots  bool   `yaml:"screenshots"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ListenAddr:     ":8080",
		ArtifactsDir:   "artifacts",
		ArtifactPrefix: "clean-hands",
		BaseURL:        "https://mytax.dc.gov/_/",
		Headless:       true,
	}
}

// Load reads a YAML config file, merges it over the defaults, and applies
// environment overrides. An empty path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// applyEnv maps the environment variables set by container platforms onto
// the config. PORT is the convention used by Heroku-style runtimes.
func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.ListenAddr = ":" + port
	}
	if p := os.Getenv("CHROME_PATH"); p != "" {
		c.ChromePath = p
	}
	if dir := os.Getenv("ARTIFACTS_DIR"); dir != "" {
		c.ArtifactsDir = dir
	}
}

var listenAddrRe = regexp.MustCompile(`^[^:]*:\d+$`)

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if !listenAddrRe.MatchString(c.ListenAddr) {
		return fmt.Errorf("config: listen_addr %q is not host:port", c.ListenAddr)
	}
	if c.ArtifactsDir == "" {
		return fmt.Errorf("config: artifacts_dir is required")
	}
	if c.ArtifactPrefix == "" {
		return fmt.Errorf("config: artifact_prefix is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("config: base_url is required")
	}
	return nil
}

// Package config loads the dcmmove configuration file and supplies defaults
// for flags the user did not set.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pacsops/dcmmove/internal/uid"
)

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "DCMMOVE_CONFIG"

// configFileName is the default file under the user config directory.
const configFileName = "config.yaml"

// AuthConfig holds default credentials. Token wins over the OAuth2 fields
// when both are present, matching the flag behavior.
type AuthConfig struct {
	Token         string `yaml:"token"`
	TokenEndpoint string `yaml:"token_endpoint"`
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	Scope         string `yaml:"scope"`
}

// LoggingConfig mirrors logging.Config in the file format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Config is the full on-disk configuration. Zero values mean "not
// configured"; flags override whatever is loaded here.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	AET            string        `yaml:"aet"`
	OrgUIDRoot     string        `yaml:"org_uid_root"`
	DefaultIssuer  string        `yaml:"default_issuer"`
	Concurrency    int           `yaml:"concurrency"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Insecure       bool          `yaml:"insecure"`
	Auth           AuthConfig    `yaml:"auth"`
	Logging        LoggingConfig `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OrgUIDRoot:     uid.DefaultOrgRoot,
		Concurrency:    4,
		TimeoutSeconds: 60,
		Logging:        LoggingConfig{Level: "info"},
	}
}

// Path returns the config file location: $DCMMOVE_CONFIG when set, otherwise
// ~/.dcmmove/config.yaml.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dcmmove", configFileName)
}

// Load reads the config file over the defaults. A missing file is not an
// error; a file that exists but fails to parse is.
func Load() (*Config, error) {
	return loadFrom(Path())
}

func loadFrom(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if cfg.Concurrency < 1 {
		cfg.Concurrency = Default().Concurrency
	}
	if cfg.TimeoutSeconds < 1 {
		cfg.TimeoutSeconds = Default().TimeoutSeconds
	}
	if cfg.OrgUIDRoot == "" {
		cfg.OrgUIDRoot = uid.DefaultOrgRoot
	}
	return cfg, nil
}

// Timeout returns the configured HTTP timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

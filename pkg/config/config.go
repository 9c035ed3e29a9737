// Package config loads shelfsync settings from layered sources:
// embedded defaults, an optional shelfsync.toml, and SHELFSYNC_*
// environment variables, in that order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/shelfsync/shelfsync/pkg/errors"
)

const envPrefix = "SHELFSYNC_"

// Config holds the resolved application settings
type Config struct {
	Remote struct {
		BaseURL string `koanf:"base_url"`
	} `koanf:"remote"`
	Content struct {
		DistDir string `koanf:"dist_dir"`
	} `koanf:"content"`
	Timeouts struct {
		Manifest int `koanf:"manifest"`
		Asset    int `koanf:"asset"`
		Media    int `koanf:"media"`
	} `koanf:"timeouts"`
	Enrichment struct {
		Enabled bool `koanf:"enabled"`
	} `koanf:"enrichment"`
}

// ManifestTimeout returns the manifest fetch timeout as a duration
func (c *Config) ManifestTimeout() time.Duration {
	return time.Duration(c.Timeouts.Manifest) * time.Second
}

// AssetTimeout returns the default asset fetch timeout as a duration
func (c *Config) AssetTimeout() time.Duration {
	return time.Duration(c.Timeouts.Asset) * time.Second
}

// MediaTimeout returns the large-media fetch timeout as a duration
func (c *Config) MediaTimeout() time.Duration {
	return time.Duration(c.Timeouts.Media) * time.Second
}

// Load reads configuration in layers. configPath, when non-empty, names an
// explicit TOML file and replaces the default search locations.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load embedded defaults")
	}

	// 2. Config file, explicit path or search locations
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load config from %s", configPath)
		}
	} else {
		for _, path := range searchPaths() {
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse config from %s", path)
			}
			break
		}
	}

	// 3. Environment overrides
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment overrides")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal config")
	}

	if cfg.Content.DistDir == "" {
		cfg.Content.DistDir = filepath.Join(xdg.DataHome, "shelfsync", "content")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Timeouts.Manifest <= 0 || c.Timeouts.Asset <= 0 || c.Timeouts.Media <= 0 {
		return errors.New(errors.ErrConfigValid, "timeouts must be positive")
	}
	return nil
}

// searchPaths lists config file locations in priority order
func searchPaths() []string {
	return []string{
		"shelfsync.toml",
		filepath.Join(xdg.ConfigHome, "shelfsync", "shelfsync.toml"),
	}
}

// envTransform maps SHELFSYNC_REMOTE_BASE_URL to remote.base_url: the
// first underscore separates the section, the rest is the key.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if section, key, found := strings.Cut(s, "_"); found {
		return section + "." + key
	}
	return s
}

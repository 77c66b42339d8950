// Package config loads igloo-mcp configuration from ~/.igloo/config.toml.
//
// A profile is a named bundle of connection settings used to execute a
// query against the remote warehouse. The session-level settings of a
// profile (warehouse, database, schema, role) become the base session
// context for cache-key derivation; per-request overrides layer on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Profile is a named bundle of connection and session settings.
type Profile struct {
	// Connection names the Snowflake CLI connection to execute with.
	// Empty means the CLI's own default connection.
	Connection string `toml:"connection"`
	Warehouse  string `toml:"warehouse"`
	Database   string `toml:"database"`
	Schema     string `toml:"schema"`
	Role       string `toml:"role"`
}

// CacheConfig holds the result-cache settings.
type CacheConfig struct {
	// DataDir overrides where cache.db lives. Empty uses ~/.igloo.
	DataDir string `toml:"data_dir"`
	// TTLHours is entry lifetime in hours. Zero means entries never expire.
	TTLHours int `toml:"ttl_hours"`
	// MaxResultRows caps the size of a cacheable result set. Zero means no cap.
	MaxResultRows int `toml:"max_result_rows"`
	// Disabled turns the cache off entirely — every query re-executes.
	Disabled bool `toml:"disabled"`
}

// Config is the full igloo-mcp configuration.
type Config struct {
	DefaultProfile string             `toml:"default_profile"`
	Profiles       map[string]Profile `toml:"profiles"`
	Cache          CacheConfig        `toml:"cache"`
}

// Default returns the configuration used when no config file exists:
// a single "default" profile that delegates everything to the CLI's own
// connection settings, and a 24h cache.
func Default() Config {
	return Config{
		DefaultProfile: "default",
		Profiles: map[string]Profile{
			"default": {},
		},
		Cache: CacheConfig{
			TTLHours:      24,
			MaxResultRows: 10000,
		},
	}
}

// DefaultPath returns the standard config file location, ~/.igloo/config.toml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".igloo", "config.toml")
}

// Load reads configuration from path. A missing file is not an error —
// it returns Default(). A malformed file is an error: running against a
// half-parsed config would silently target the wrong warehouse.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = "default"
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{"default": {}}
	}
	return cfg, nil
}

// Profile resolves a profile by name, falling back to the default
// profile when name is empty. It returns the profile and its resolved
// name (the name participates in cache-key derivation).
func (c Config) Profile(name string) (Profile, string, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, "", fmt.Errorf("config: unknown profile %q", name)
	}
	return p, name, nil
}

// SessionContext returns the profile's non-empty session settings as a
// loosely-typed mapping, ready to overlay with per-request overrides.
func (p Profile) SessionContext() map[string]any {
	ctx := make(map[string]any)
	if p.Warehouse != "" {
		ctx["warehouse"] = p.Warehouse
	}
	if p.Database != "" {
		ctx["database"] = p.Database
	}
	if p.Schema != "" {
		ctx["schema"] = p.Schema
	}
	if p.Role != "" {
		ctx["role"] = p.Role
	}
	return ctx
}

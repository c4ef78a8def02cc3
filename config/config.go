// Package config loads and validates the cacheops configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/jonwraymond/cacheops/cache"
)

// DefaultPath is the config file the CLI looks for when --config is
// not given.
const DefaultPath = "cacheops.toml"

// Environment variables. Each one wins over the corresponding file
// value.
const (
	EnvServers   = "CACHEOPS_SERVERS"   // comma-separated "host:port" list
	EnvNamespace = "CACHEOPS_NAMESPACE" // key namespace
	EnvDebug     = "CACHEOPS_DEBUG"     // boolean per strconv.ParseBool
)

// Duration is a time.Duration that unmarshals from TOML strings in Go
// syntax, e.g. "500ms" or "2h".
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config mirrors the cacheops TOML schema. The zero value disables
// caching: no servers means every cache operation reports ErrDisabled.
type Config struct {
	Servers           []string `toml:"servers"`
	Namespace         string   `toml:"namespace"`
	Debug             bool     `toml:"debug"`
	DefaultTTL        Duration `toml:"default_ttl"`
	CompressThreshold int      `toml:"compress_threshold"`
	DialTimeout       Duration `toml:"dial_timeout"`
	OpTimeout         Duration `toml:"op_timeout"`
}

// Enabled reports whether the config names any servers.
func (c Config) Enabled() bool { return len(c.Servers) > 0 }

// CacheConfig converts to the cache client's config.
func (c Config) CacheConfig() cache.Config {
	return cache.Config{
		Servers:           c.Servers,
		Namespace:         c.Namespace,
		Debug:             c.Debug,
		DefaultTTL:        time.Duration(c.DefaultTTL),
		CompressThreshold: c.CompressThreshold,
		DialTimeout:       time.Duration(c.DialTimeout),
		OpTimeout:         time.Duration(c.OpTimeout),
	}
}

// Load reads a cacheops configuration file. String values go through
// strict ${VAR} expansion, then environment overrides are applied on
// top. A file that names no servers loads fine; the resulting config
// reports Enabled() == false.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	unknown, err := unknownKeys(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return Config{}, fmt.Errorf("%s: unknown configuration keys: %s", path, strings.Join(unknown, ", "))
	}

	if err := cfg.expand(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv returns a config built from environment variables alone.
func FromEnv() (Config, error) {
	var cfg Config
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SplitServers parses a comma-separated endpoint list, trimming
// whitespace and dropping empty entries.
func SplitServers(s string) []string {
	var servers []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			servers = append(servers, part)
		}
	}
	return servers
}

func (c *Config) expand() error {
	for i, server := range c.Servers {
		expanded, err := expandEnv(server)
		if err != nil {
			return err
		}
		c.Servers[i] = expanded
	}
	namespace, err := expandEnv(c.Namespace)
	if err != nil {
		return err
	}
	c.Namespace = namespace
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvServers); ok {
		c.Servers = SplitServers(v)
	}
	if v, ok := os.LookupEnv(EnvNamespace); ok {
		c.Namespace = v
	}
	if v, ok := os.LookupEnv(EnvDebug); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvDebug, err)
		}
		c.Debug = debug
	}
	return nil
}

func unknownKeys(data []byte) ([]string, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	known := map[string]struct{}{
		"servers":            {},
		"namespace":          {},
		"debug":              {},
		"default_ttl":        {},
		"compress_threshold": {},
		"dial_timeout":       {},
		"op_timeout":         {},
	}

	var unknown []string
	for key := range raw {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	return unknown, nil
}

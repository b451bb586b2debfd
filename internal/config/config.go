package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/learner"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/patterns"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/persist"
)

// Environment variables read by ApplyEnv.
const (
	EnvBackend       = "PHRASECACHE_BACKEND"
	EnvPath          = "PHRASECACHE_PATH"
	EnvMaxEntries    = "PHRASECACHE_MAX_ENTRIES"
	EnvLogLevel      = "PHRASECACHE_LOG_LEVEL"
	EnvFlushInterval = "PHRASECACHE_FLUSH_INTERVAL"
)

// #region defaults
// Default returns the built-in configuration: a JSON file store in the working directory.
func Default() *Config {
	pc := patterns.DefaultConfig()
	return &Config{
		Store: StoreConfig{
			MaxEntries:       pc.MaxEntries,
			FuzzyTolerance:   pc.FuzzyTolerance,
			Alpha:            pc.Learner.Alpha,
			Lambda:           pc.Learner.Lambda,
			SuccessThreshold: pc.Learner.SuccessThreshold,
		},
		Persistence: PersistenceConfig{
			Backend: persist.BackendFile,
			Path:    "phrase_cache.json",
		},
		Logging: logging.DefaultConfig(),
	}
}

// #endregion defaults

// #region load
// Load reads a YAML or TOML file over the defaults. The format follows the extension.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse toml config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported extension %q (want .yaml, .yml or .toml)", path, ext)
	}
	return cfg, nil
}

// #endregion load

// #region env
// ApplyEnv overrides fields from the PHRASECACHE_* variables. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvBackend); v != "" {
		c.Persistence.Backend = v
	}
	if v := getenv(EnvPath); v != "" {
		c.Persistence.Path = v
	}
	if v := getenv(EnvMaxEntries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxEntries, err)
		}
		c.Store.MaxEntries = n
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := getenv(EnvFlushInterval); v != "" {
		c.Store.FlushInterval = v
	}
	return nil
}

// #endregion env

// #region validate
// Validate rejects configurations the store or CLI cannot run with.
func (c *Config) Validate() error {
	pc, err := c.PatternConfig()
	if err != nil {
		return err
	}
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	backend := strings.ToLower(c.Persistence.Backend)
	if backend == "json" {
		backend = persist.BackendFile
	}
	if !slices.Contains(persist.Backends, backend) {
		return fmt.Errorf("persistence backend %q: want one of %s", c.Persistence.Backend, strings.Join(persist.Backends, ", "))
	}
	if backend != persist.BackendMemory && c.Persistence.Path == "" {
		return fmt.Errorf("persistence backend %s requires a path", backend)
	}
	if c.Persistence.Journal && backend != persist.BackendSQLite {
		return fmt.Errorf("outcome journal requires the sqlite backend, got %s", backend)
	}
	return nil
}

// PatternConfig maps the store section onto patterns.Config.
func (c *Config) PatternConfig() (patterns.Config, error) {
	var interval time.Duration
	if c.Store.FlushInterval != "" {
		d, err := time.ParseDuration(c.Store.FlushInterval)
		if err != nil {
			return patterns.Config{}, fmt.Errorf("flush interval: %w", err)
		}
		interval = d
	}
	return patterns.Config{
		MaxEntries:     c.Store.MaxEntries,
		FuzzyTolerance: c.Store.FuzzyTolerance,
		FlushInterval:  interval,
		Learner: learner.Config{
			Alpha:            c.Store.Alpha,
			Lambda:           c.Store.Lambda,
			SuccessThreshold: c.Store.SuccessThreshold,
		},
	}, nil
}

// #endregion validate

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/patterns"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_MatchesStoreDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	pc, err := cfg.PatternConfig()
	require.NoError(t, err)
	assert.Equal(t, patterns.DefaultConfig(), pc)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "cache.yaml", `
store:
  max_entries: 50
  flush_interval: 250ms
persistence:
  backend: sqlite
  path: /var/lib/phrasecache/cache.db
  journal: true
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 50, cfg.Store.MaxEntries)
	assert.Equal(t, 0.15, cfg.Store.Alpha, "unset fields keep defaults")
	assert.Equal(t, "sqlite", cfg.Persistence.Backend)
	assert.True(t, cfg.Persistence.Journal)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Encoding)

	pc, err := cfg.PatternConfig()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, pc.FlushInterval)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "cache.toml", `
[store]
max_entries = 10
alpha = 0.3
fuzzy_tolerance = 2

[persistence]
backend = "leveldb"
path = "cache.ldb"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.Store.MaxEntries)
	assert.Equal(t, 0.3, cfg.Store.Alpha)
	assert.Equal(t, 2, cfg.Store.FuzzyTolerance)
	assert.Equal(t, "leveldb", cfg.Persistence.Backend)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "cache.ini", "x=1"))
	assert.ErrorContains(t, err, "unsupported extension")

	_, err = Load(writeFile(t, "cache.yaml", "store:\n  max_entrys: 3\n"))
	assert.Error(t, err, "unknown yaml keys are rejected")

	_, err = Load(writeFile(t, "cache.toml", "[store]\nbogus = 1\n"))
	assert.Error(t, err, "unknown toml keys are rejected")
}

func TestLoad_EmptyYAMLKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "cache.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvBackend:       "memory",
		EnvPath:          "",
		EnvMaxEntries:    "7",
		EnvLogLevel:      "warn",
		EnvFlushInterval: "1s",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "memory", cfg.Persistence.Backend)
	assert.Equal(t, "phrase_cache.json", cfg.Persistence.Path, "empty variables leave the value alone")
	assert.Equal(t, 7, cfg.Store.MaxEntries)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "1s", cfg.Store.FlushInterval)

	env[EnvMaxEntries] = "many"
	assert.Error(t, Default().ApplyEnv(func(k string) string { return env[k] }))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"zero capacity":      func(c *Config) { c.Store.MaxEntries = 0 },
		"alpha above one":    func(c *Config) { c.Store.Alpha = 1.5 },
		"negative lambda":    func(c *Config) { c.Store.Lambda = -0.1 },
		"unknown backend":    func(c *Config) { c.Persistence.Backend = "redis" },
		"missing path":       func(c *Config) { c.Persistence.Path = "" },
		"journal on file":    func(c *Config) { c.Persistence.Journal = true },
		"bad flush interval": func(c *Config) { c.Store.FlushInterval = "soon" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	mem := Default()
	mem.Persistence = PersistenceConfig{Backend: "memory"}
	assert.NoError(t, mem.Validate(), "memory needs no path")
}

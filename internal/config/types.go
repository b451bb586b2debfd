package config

import (
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/logging"
)

// #region config
// Config is the on-disk configuration for the phrase cache tools.
type Config struct {
	Store       StoreConfig       `yaml:"store" toml:"store"`
	Persistence PersistenceConfig `yaml:"persistence" toml:"persistence"`
	Logging     logging.Config    `yaml:"logging" toml:"logging"`
}

// StoreConfig sizes the pattern store and tunes the learner.
type StoreConfig struct {
	MaxEntries       int     `yaml:"max_entries" toml:"max_entries"`
	FuzzyTolerance   int     `yaml:"fuzzy_tolerance" toml:"fuzzy_tolerance"`
	FlushInterval    string  `yaml:"flush_interval" toml:"flush_interval"` // Go duration; "" or "0s" = synchronous
	Alpha            float64 `yaml:"alpha" toml:"alpha"`
	Lambda           float64 `yaml:"lambda" toml:"lambda"`
	SuccessThreshold float64 `yaml:"success_threshold" toml:"success_threshold"`
}

// PersistenceConfig picks the storage backend.
type PersistenceConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // file | sqlite | leveldb | memory
	Path    string `yaml:"path" toml:"path"`
	Journal bool   `yaml:"journal" toml:"journal"` // outcome_log table; sqlite backend only
}

// #endregion config

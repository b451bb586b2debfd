package logging

import "time"

// #region config
// Config selects the zap logger flavour.
type Config struct {
	Level       string `yaml:"level" toml:"level"`             // debug | info | warn | error
	Encoding    string `yaml:"encoding" toml:"encoding"`       // json | console
	Development bool   `yaml:"development" toml:"development"` // human-friendly defaults, DPanic panics
}

// DefaultConfig logs info and above as JSON.
func DefaultConfig() Config {
	return Config{Level: "info", Encoding: "json"}
}

// #endregion config

// #region outcome
// Action classifies what a Record call did to its entry.
type Action string

const (
	ActionInsert Action = "insert" // new phrase (and possibly new entry)
	ActionUpdate Action = "update" // existing phrase observed again
)

// Outcome is one row of the outcome_log table.
type Outcome struct {
	EventID      string
	EntryKey     string
	Phrase       string
	Satisfaction float64
	Turn         int64
	Action       Action
	EvictedKey   string // empty when nothing was evicted
	CreatedAt    time.Time
}

// #endregion outcome

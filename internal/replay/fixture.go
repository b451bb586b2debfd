package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/patterns"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description  string               `json:"description"`
	Config       FixtureConfig        `json:"config"`
	Interactions []FixtureInteraction `json:"interactions"`
	Queries      []FixtureQuery       `json:"queries"`
	ExpectStats  *FixtureStats        `json:"expect_stats,omitempty"`
}

// FixtureConfig overrides store defaults. Omitted fields keep the default.
type FixtureConfig struct {
	MaxEntries       *int     `json:"max_entries,omitempty"`
	FuzzyTolerance   *int     `json:"fuzzy_tolerance,omitempty"`
	Alpha            *float64 `json:"alpha,omitempty"`
	Lambda           *float64 `json:"lambda,omitempty"`
	SuccessThreshold *float64 `json:"success_threshold,omitempty"`
}

// FixtureInteraction is one recorded outcome.
type FixtureInteraction struct {
	Turn         int64                 `json:"turn"`
	Context      signature.FeltContext `json:"context"`
	Phrase       string                `json:"phrase"`
	Satisfaction float64               `json:"satisfaction"`
}

// FixtureQuery is a Candidates call and its expected phrase order. It runs after every
// interaction whose turn is <= its own.
type FixtureQuery struct {
	Name           string                `json:"name"`
	Turn           int64                 `json:"turn"`
	Context        signature.FeltContext `json:"context"`
	K              int                   `json:"k"`
	Fuzzy          *bool                 `json:"fuzzy,omitempty"`     // default true
	Tolerance      *int                  `json:"tolerance,omitempty"` // default from config
	Expect         []string              `json:"expect"`
	ExpectTopScore *float64              `json:"expect_top_score,omitempty"`
}

// FixtureStats is checked against the store after the last step.
type FixtureStats struct {
	EntryCount  int `json:"entry_count"`
	PhraseCount int `json:"phrase_count"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToPatternConfig applies the overrides to patterns.DefaultConfig.
func (fc *FixtureConfig) ToPatternConfig() patterns.Config {
	cfg := patterns.DefaultConfig()
	if fc.MaxEntries != nil {
		cfg.MaxEntries = *fc.MaxEntries
	}
	if fc.FuzzyTolerance != nil {
		cfg.FuzzyTolerance = *fc.FuzzyTolerance
	}
	if fc.Alpha != nil {
		cfg.Learner.Alpha = *fc.Alpha
	}
	if fc.Lambda != nil {
		cfg.Learner.Lambda = *fc.Lambda
	}
	if fc.SuccessThreshold != nil {
		cfg.Learner.SuccessThreshold = *fc.SuccessThreshold
	}
	return cfg
}

// options converts the query switches to store query options.
func (q *FixtureQuery) options() []patterns.QueryOption {
	var opts []patterns.QueryOption
	if q.Fuzzy != nil && !*q.Fuzzy {
		opts = append(opts, patterns.WithoutFuzzy())
	}
	if q.Tolerance != nil {
		opts = append(opts, patterns.WithTolerance(*q.Tolerance))
	}
	return opts
}

// #endregion fixture-loader

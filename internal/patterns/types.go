package patterns

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/learner"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

var (
	// ErrCapacityExceeded means eviction failed to free a slot. It indicates a bug.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrClosed is returned by mutating calls after Close.
	ErrClosed = errors.New("store closed")
)

// #region config
// Config holds the store bound, learning parameters and durability mode.
type Config struct {
	MaxEntries     int
	Learner        learner.Config
	FuzzyTolerance int           // default ± bin radius for fuzzy lookups
	FlushInterval  time.Duration // 0 = persist synchronously inside Record
}

// DefaultConfig returns the standard store parameters.
func DefaultConfig() Config {
	return Config{
		MaxEntries:     1000,
		Learner:        learner.DefaultConfig(),
		FuzzyTolerance: 1,
	}
}

// Validate rejects configs the store cannot run with.
func (c Config) Validate() error {
	if c.MaxEntries < 1 {
		return fmt.Errorf("%w: max entries %d < 1", signature.ErrInvalidValue, c.MaxEntries)
	}
	if c.FuzzyTolerance < 0 {
		return fmt.Errorf("%w: fuzzy tolerance %d < 0", signature.ErrInvalidValue, c.FuzzyTolerance)
	}
	if c.FlushInterval < 0 {
		return fmt.Errorf("%w: flush interval %s < 0", signature.ErrInvalidValue, c.FlushInterval)
	}
	return c.Learner.Validate()
}

// #endregion config

// #region entry
// Entry is every phrase learned under one standard key.
type Entry struct {
	Key       signature.Key
	Signature signature.Signature // standard-precision view; optional fields absent
	Phrases   []learner.PhraseRecord
}

// lastTurn is the most recent turn any phrase in e was used.
func (e Entry) lastTurn() int64 {
	var last int64
	for i, p := range e.Phrases {
		if i == 0 || p.LastTurn > last {
			last = p.LastTurn
		}
	}
	return last
}

// oldestTurn is the earliest last_turn among e's phrases.
func (e Entry) oldestTurn() int64 {
	var oldest int64
	for i, p := range e.Phrases {
		if i == 0 || p.LastTurn < oldest {
			oldest = p.LastTurn
		}
	}
	return oldest
}

// #endregion entry

// #region candidate
// Candidate is one ranked phrase returned by Candidates.
type Candidate struct {
	Text       string
	Score      float64
	EMAQuality float64
	Key        signature.Key // entry the phrase came from
}

// #endregion candidate

// #region stats
// Stats summarises store contents.
type Stats struct {
	EntryCount          int     `json:"entry_count"`
	PhraseCount         int     `json:"phrase_count"`
	MeanQuality         float64 `json:"mean_quality"`
	StdQuality          float64 `json:"std_quality"`
	CapacityUtilization float64 `json:"capacity_utilization"`
}

// #endregion stats

// #region journal
// Journal receives one outcome per applied Record. *logging.Journal implements it.
type Journal interface {
	LogOutcome(o logging.Outcome) error
}

// #endregion journal

package learner

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

// #region new-record
// NewRecord seeds a record from its first observation: the first satisfaction defines the
// starting quality rather than a fixed prior. Counters start at zero; call Observe next.
func NewRecord(text string, satisfaction float64) PhraseRecord {
	return PhraseRecord{
		Text:       text,
		EMAQuality: satisfaction,
	}
}

// #endregion new-record

// #region observe
// Observe is a pure function returning rec updated with one satisfaction observation.
func Observe(rec PhraseRecord, satisfaction float64, turn int64, cfg Config) PhraseRecord {
	rec.EMAQuality = cfg.Alpha*satisfaction + (1-cfg.Alpha)*rec.EMAQuality
	rec.TotalAttempts++
	if satisfaction >= cfg.SuccessThreshold {
		rec.SuccessCount++
	}
	rec.SuccessRate = float64(rec.SuccessCount) / float64(rec.TotalAttempts)
	rec.MeanSatisfaction += (satisfaction - rec.MeanSatisfaction) / float64(rec.TotalAttempts)
	rec.LastTurn = turn
	return rec
}

// #endregion observe

// #region scoring
// RecencyWeight decays exponentially with turns elapsed since the record was last used.
// A turn earlier than LastTurn counts as zero elapsed.
func RecencyWeight(rec PhraseRecord, turn int64, cfg Config) float64 {
	elapsed := turn - rec.LastTurn
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Exp(-cfg.Lambda * float64(elapsed))
}

// OverallQuality is the ranking score: EMA quality × success rate × recency weight.
func OverallQuality(rec PhraseRecord, turn int64, cfg Config) float64 {
	return rec.EMAQuality * rec.SuccessRate * RecencyWeight(rec, turn, cfg)
}

// #endregion scoring

// #region validate
// ValidateSatisfaction rejects non-finite values and values outside [0,1].
func ValidateSatisfaction(s float64) error {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return fmt.Errorf("%w: non-finite satisfaction %v", signature.ErrInvalidValue, s)
	}
	if s < 0 || s > 1 {
		return fmt.Errorf("%w: satisfaction %v outside [0, 1]", signature.ErrInvalidValue, s)
	}
	return nil
}

// Validate checks that cfg describes a usable learner.
func (cfg Config) Validate() error {
	if !(cfg.Alpha > 0 && cfg.Alpha <= 1) {
		return fmt.Errorf("%w: alpha %v outside (0, 1]", signature.ErrInvalidValue, cfg.Alpha)
	}
	if cfg.Lambda < 0 || math.IsNaN(cfg.Lambda) || math.IsInf(cfg.Lambda, 0) {
		return fmt.Errorf("%w: lambda %v", signature.ErrInvalidValue, cfg.Lambda)
	}
	if cfg.SuccessThreshold < 0 || cfg.SuccessThreshold > 1 {
		return fmt.Errorf("%w: success threshold %v outside [0, 1]", signature.ErrInvalidValue, cfg.SuccessThreshold)
	}
	return nil
}

// #endregion validate

package patterns

import (
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/learner"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

// #region entry-score
// EntryScore is the best OverallQuality among e's phrases at turn.
func EntryScore(e Entry, turn int64, cfg learner.Config) float64 {
	var best float64
	for i, p := range e.Phrases {
		q := learner.OverallQuality(p, turn, cfg)
		if i == 0 || q > best {
			best = q
		}
	}
	return best
}

// #endregion entry-score

// #region victim
type victimCandidate struct {
	key   signature.Key
	score  float64
	oldest int64
}

// evictsBefore orders eviction candidates: lowest score, then the oldest last_turn among
// the entry's phrases, then the smallest key encoding.
func (a victimCandidate) evictsBefore(b victimCandidate) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	if a.oldest != b.oldest {
		return a.oldest < b.oldest
	}
	return a.key.String() < b.key.String()
}

// selectVictim returns the entry to evict at turn. ok is false for an empty map.
func selectVictim(entries map[signature.Key]Entry, turn int64, cfg learner.Config) (victim signature.Key, score float64, ok bool) {
	var best victimCandidate
	for k, e := range entries {
		c := victimCandidate{key: k, score: EntryScore(e, turn, cfg), oldest: e.oldestTurn()}
		if !ok || c.evictsBefore(best) {
			best, ok = c, true
		}
	}
	return best.key, best.score, ok
}

// #endregion victim

package patterns

import (
	"fmt"
	"math"
	"slices"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/learner"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/persist"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

// #region encode
// EncodeEntry converts e to its durable form.
func EncodeEntry(e Entry) persist.EntryDoc {
	phrases := make([]persist.PhraseDoc, len(e.Phrases))
	for i, p := range e.Phrases {
		phrases[i] = persist.PhraseDoc{
			Text:             p.Text,
			EMAQuality:       p.EMAQuality,
			SuccessCount:     p.SuccessCount,
			TotalAttempts:    p.TotalAttempts,
			SuccessRate:      p.SuccessRate,
			MeanSatisfaction: p.MeanSatisfaction,
			LastTurn:         p.LastTurn,
		}
	}
	return persist.EntryDoc{Signature: e.Signature.ToDoc(), Phrases: phrases}
}

// #endregion encode

// #region decode
// DecodeEntry rebuilds an entry from its durable key and document. The key must be a
// standard key that agrees with the stored signature fields.
func DecodeEntry(encoded string, doc persist.EntryDoc) (Entry, error) {
	key, err := signature.ParseKey(encoded)
	if err != nil {
		return Entry{}, fmt.Errorf("entry key: %w", err)
	}
	if key.Precision() != signature.Standard {
		return Entry{}, fmt.Errorf("%w: entry key has %s precision", persist.ErrCorrupt, key.Precision())
	}
	sig, err := signature.FromDoc(doc.Signature)
	if err != nil {
		return Entry{}, fmt.Errorf("entry signature: %w", err)
	}
	if signature.Project(sig, signature.Standard) != key {
		return Entry{}, fmt.Errorf("%w: signature fields disagree with key %s", persist.ErrCorrupt, encoded)
	}
	if len(doc.Phrases) == 0 {
		return Entry{}, fmt.Errorf("%w: entry %s has no phrases", persist.ErrCorrupt, encoded)
	}

	phrases := make([]learner.PhraseRecord, 0, len(doc.Phrases))
	for _, p := range doc.Phrases {
		if slices.ContainsFunc(phrases, func(r learner.PhraseRecord) bool { return r.Text == p.Text }) {
			return Entry{}, fmt.Errorf("%w: duplicate phrase %q in entry %s", persist.ErrCorrupt, p.Text, encoded)
		}
		if !finite(p.EMAQuality) || !finite(p.SuccessRate) || !finite(p.MeanSatisfaction) {
			return Entry{}, fmt.Errorf("%w: non-finite quality for phrase %q", persist.ErrCorrupt, p.Text)
		}
		if p.TotalAttempts < 1 || p.SuccessCount < 0 || p.SuccessCount > p.TotalAttempts {
			return Entry{}, fmt.Errorf("%w: bad counters for phrase %q", persist.ErrCorrupt, p.Text)
		}
		phrases = append(phrases, learner.PhraseRecord{
			Text:             p.Text,
			EMAQuality:       p.EMAQuality,
			SuccessCount:     p.SuccessCount,
			TotalAttempts:    p.TotalAttempts,
			SuccessRate:      p.SuccessRate,
			MeanSatisfaction: p.MeanSatisfaction,
			LastTurn:         p.LastTurn,
		})
	}
	return Entry{Key: key, Signature: sig, Phrases: phrases}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// #endregion decode

package persist

import (
	"context"
	"errors"
	"slices"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

var (
	// ErrStorageUnavailable wraps every durable read/write failure.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrCorrupt marks storage that was readable but could not be decoded.
	ErrCorrupt = errors.New("corrupt storage")
)

// #region document
// PhraseDoc is the durable form of one phrase record.
type PhraseDoc struct {
	Text             string  `json:"text"`
	EMAQuality       float64 `json:"ema_quality"`
	SuccessCount     int     `json:"success_count"`
	TotalAttempts    int     `json:"total_attempts"`
	SuccessRate      float64 `json:"success_rate"`
	MeanSatisfaction float64 `json:"mean_satisfaction"`
	LastTurn         int64   `json:"last_turn"`
}

// EntryDoc is the durable form of one pattern entry.
type EntryDoc struct {
	Signature signature.Doc `json:"signature"`
	Phrases   []PhraseDoc   `json:"phrases"`
}

// Document maps the canonical standard key encoding to its entry.
type Document map[string]EntryDoc

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, e := range d {
		out[k] = e.clone()
	}
	return out
}

func (e EntryDoc) clone() EntryDoc {
	e.Signature.Participants = slices.Clone(e.Signature.Participants)
	e.Phrases = slices.Clone(e.Phrases)
	return e
}

// #endregion document

// #region changes
// Changes is an incremental update: entries to upsert and keys to remove.
type Changes struct {
	Put    map[string]EntryDoc
	Delete []string
}

// Empty reports whether c carries nothing to write.
func (c Changes) Empty() bool {
	return len(c.Put) == 0 && len(c.Delete) == 0
}

// ApplyTo mutates d with c. Deletes run before puts.
func (c Changes) ApplyTo(d Document) {
	for _, k := range c.Delete {
		delete(d, k)
	}
	for k, e := range c.Put {
		d[k] = e.clone()
	}
}

// #endregion changes

// #region adapter
// Adapter loads and saves the whole store document.
type Adapter interface {
	// Load returns the stored document; a store that was never written loads as empty.
	Load(ctx context.Context) (Document, error)
	// Save replaces the stored document. State is durable once Save returns nil.
	Save(ctx context.Context, doc Document) error
	Close() error
}

// Incremental is implemented by adapters that can persist a change set without
// rewriting the whole document.
type Incremental interface {
	Apply(ctx context.Context, changes Changes) error
}

// #endregion adapter

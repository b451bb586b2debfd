package replay

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/patterns"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/persist"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

// #region export
// FromOutcomes turns journaled outcomes (newest first, as RecentOutcomes returns them) into
// a regression fixture. Each entry key becomes a representative felt context. Expected
// rankings come from replaying the exported interactions under cfg, one exact-key query per
// distinct key at the final turn.
func FromOutcomes(ctx context.Context, outcomes []logging.Outcome, cfg patterns.Config, k int) (*Fixture, error) {
	chronological := slices.Clone(outcomes)
	slices.Reverse(chronological)

	f := &Fixture{
		Description: fmt.Sprintf("exported from %d journaled outcomes", len(outcomes)),
		Config: FixtureConfig{
			MaxEntries:       &cfg.MaxEntries,
			FuzzyTolerance:   &cfg.FuzzyTolerance,
			Alpha:            &cfg.Learner.Alpha,
			Lambda:           &cfg.Learner.Lambda,
			SuccessThreshold: &cfg.Learner.SuccessThreshold,
		},
	}

	var (
		keys     []string
		contexts = map[string]signature.FeltContext{}
		lastTurn int64
	)
	for i, o := range chronological {
		fc, ok := contexts[o.EntryKey]
		if !ok {
			key, err := signature.ParseKey(o.EntryKey)
			if err != nil {
				return nil, fmt.Errorf("outcome %s: %w", o.EventID, err)
			}
			sig, err := signature.FromKey(key)
			if err != nil {
				return nil, fmt.Errorf("outcome %s: %w", o.EventID, err)
			}
			fc = signature.Representative(sig)
			contexts[o.EntryKey] = fc
			keys = append(keys, o.EntryKey)
		}
		if i == 0 || o.Turn > lastTurn {
			lastTurn = o.Turn
		}
		f.Interactions = append(f.Interactions, FixtureInteraction{
			Turn:         o.Turn,
			Context:      fc,
			Phrase:       o.Phrase,
			Satisfaction: o.Satisfaction,
		})
	}

	slices.SortStableFunc(f.Interactions, func(a, b FixtureInteraction) int { return cmp.Compare(a.Turn, b.Turn) })

	store, err := patterns.Open(ctx, persist.NewMemoryAdapter(nil), cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	for _, in := range f.Interactions {
		sig, err := signature.Build(in.Context)
		if err != nil {
			return nil, err
		}
		if err := store.Record(ctx, sig, in.Phrase, in.Satisfaction, in.Turn); err != nil {
			return nil, fmt.Errorf("replay turn %d: %w", in.Turn, err)
		}
	}

	exact := false
	for i, enc := range keys {
		fc := contexts[enc]
		sig, err := signature.Build(fc)
		if err != nil {
			return nil, err
		}
		got := store.Candidates(sig, k, lastTurn, patterns.WithoutFuzzy())
		q := FixtureQuery{
			Name:    fmt.Sprintf("key %d", i+1),
			Turn:    lastTurn,
			Context: fc,
			K:       k,
			Fuzzy:   &exact,
			Expect:  make([]string, len(got)),
		}
		for j, c := range got {
			q.Expect[j] = c.Text
		}
		if len(got) > 0 {
			top := got[0].Score
			q.ExpectTopScore = &top
		}
		f.Queries = append(f.Queries, q)
	}

	st := store.Stats()
	f.ExpectStats = &FixtureStats{EntryCount: st.EntryCount, PhraseCount: st.PhraseCount}
	return f, nil
}

// #endregion export

package patterns

import (
	"cmp"
	"math"
	"slices"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/learner"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/persist"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

// #region query-options
// QueryOption adjusts a single Candidates call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	fuzzy     bool
	tolerance int
}

// WithoutFuzzy restricts the lookup to the exact standard key.
func WithoutFuzzy() QueryOption {
	return func(q *queryOptions) { q.fuzzy = false }
}

// WithTolerance overrides the configured fuzzy bin radius.
func WithTolerance(n int) QueryOption {
	return func(q *queryOptions) { q.tolerance = n }
}

// #endregion query-options

// #region candidates
// Candidates returns up to k phrases for sig ranked by OverallQuality at turn. An exact
// key hit ranks only that entry; on a miss the phrases of every fuzzy-matching entry are
// pooled. Nothing found is an empty result.
func (s *Store) Candidates(sig signature.Signature, k int, turn int64, opts ...QueryOption) []Candidate {
	q := queryOptions{fuzzy: true, tolerance: s.cfg.FuzzyTolerance}
	for _, opt := range opts {
		opt(&q)
	}
	if k <= 0 {
		return []Candidate{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exact := signature.Project(sig, signature.Standard)
	var pool []Candidate
	if e, ok := s.entries[exact]; ok {
		pool = s.appendScored(pool, e, turn)
	} else if q.fuzzy {
		seen := make(map[signature.Key]struct{})
		for _, fk := range signature.FuzzyKeys(sig, q.tolerance, signature.Standard) {
			if _, dup := seen[fk]; dup {
				continue
			}
			seen[fk] = struct{}{}
			if e, ok := s.entries[fk]; ok {
				pool = s.appendScored(pool, e, turn)
			}
		}
	}

	slices.SortFunc(pool, compareCandidates)
	if len(pool) > k {
		pool = pool[:k]
	}
	if pool == nil {
		return []Candidate{}
	}
	return pool
}

func (s *Store) appendScored(pool []Candidate, e Entry, turn int64) []Candidate {
	for _, p := range e.Phrases {
		pool = append(pool, Candidate{
			Text:       p.Text,
			Score:      learner.OverallQuality(p, turn, s.cfg.Learner),
			EMAQuality: p.EMAQuality,
			Key:        e.Key,
		})
	}
	return pool
}

// compareCandidates sorts by score descending, then EMA quality descending, then text,
// then key encoding.
func compareCandidates(a, b Candidate) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(b.EMAQuality, a.EMAQuality); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Text, b.Text); c != 0 {
		return c
	}
	if a.Key == b.Key {
		return 0
	}
	return cmp.Compare(a.Key.String(), b.Key.String())
}

// #endregion candidates

// #region stats
// Stats reports entry and phrase counts and the EMA quality distribution.
// StdQuality is the population standard deviation.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		EntryCount:          len(s.entries),
		CapacityUtilization: float64(len(s.entries)) / float64(s.cfg.MaxEntries),
	}
	var sum float64
	for _, e := range s.entries {
		for _, p := range e.Phrases {
			sum += p.EMAQuality
			st.PhraseCount++
		}
	}
	if st.PhraseCount == 0 {
		return st
	}
	st.MeanQuality = sum / float64(st.PhraseCount)

	var sq float64
	for _, e := range s.entries {
		for _, p := range e.Phrases {
			d := p.EMAQuality - st.MeanQuality
			sq += d * d
		}
	}
	st.StdQuality = math.Sqrt(sq / float64(st.PhraseCount))
	return st
}

// #endregion stats

// #region inspect
// Lookup returns a copy of the entry stored under sig's standard key.
func (s *Store) Lookup(sig signature.Signature) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[signature.Project(sig, signature.Standard)]
	if !ok {
		return Entry{}, false
	}
	e.Phrases = slices.Clone(e.Phrases)
	return e, true
}

// Entries returns copies of every entry, ordered by key encoding.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		e.Phrases = slices.Clone(e.Phrases)
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.Key.String(), b.Key.String()) })
	return out
}

// Snapshot returns the durable form of the in-memory state.
func (s *Store) Snapshot() persist.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentLocked()
}

// #endregion inspect

package replay

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/patterns"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/persist"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

// scoreTolerance bounds the difference accepted for expect_top_score.
const scoreTolerance = 1e-6

// #region types
// QueryResult is the outcome of one fixture query.
type QueryResult struct {
	Name   string
	Turn   int64
	Got    []patterns.Candidate
	Expect []string
	Passed bool
	Reason string
}

// Report is everything a replay run produced.
type Report struct {
	Description string
	Recorded    int
	Results     []QueryResult
	Stats       patterns.Stats
	StatsPassed bool
	StatsReason string
}

// Summary provides aggregate counts from a replay run.
type Summary struct {
	Queries int
	Passed  int
	Failed  int
	Stats   patterns.Stats
}

// OK reports whether every query and the final stats check passed.
func (r Report) OK() bool {
	if !r.StatsPassed {
		return false
	}
	for _, q := range r.Results {
		if !q.Passed {
			return false
		}
	}
	return true
}

// #endregion types

// #region replay
// Replay runs the fixture against a fresh in-memory store. Interactions are applied in
// turn order; each query runs once every interaction at or before its turn is recorded.
// Expectation mismatches are reported in the results; only invalid fixtures or store
// failures return an error.
func Replay(ctx context.Context, f *Fixture, logger *zap.Logger) (Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := patterns.Open(ctx, persist.NewMemoryAdapter(nil), f.Config.ToPatternConfig(), patterns.WithLogger(logger))
	if err != nil {
		return Report{}, fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	interactions := slices.Clone(f.Interactions)
	slices.SortStableFunc(interactions, func(a, b FixtureInteraction) int { return cmp.Compare(a.Turn, b.Turn) })
	queries := slices.Clone(f.Queries)
	slices.SortStableFunc(queries, func(a, b FixtureQuery) int { return cmp.Compare(a.Turn, b.Turn) })

	report := Report{Description: f.Description, StatsPassed: true}
	next := 0
	record := func(upTo int64) error {
		for ; next < len(interactions) && interactions[next].Turn <= upTo; next++ {
			in := interactions[next]
			sig, err := signature.Build(in.Context)
			if err != nil {
				return fmt.Errorf("interaction %d (turn %d): %w", next, in.Turn, err)
			}
			if err := store.Record(ctx, sig, in.Phrase, in.Satisfaction, in.Turn); err != nil {
				return fmt.Errorf("interaction %d (turn %d): %w", next, in.Turn, err)
			}
			report.Recorded++
		}
		return nil
	}

	for i := range queries {
		q := &queries[i]
		if err := record(q.Turn); err != nil {
			return report, err
		}
		sig, err := signature.Build(q.Context)
		if err != nil {
			return report, fmt.Errorf("query %q: %w", q.Name, err)
		}
		got := store.Candidates(sig, q.K, q.Turn, q.options()...)
		res := evaluate(q, got)
		if !res.Passed {
			logger.Warn("replay query failed", zap.String("query", q.Name), zap.String("reason", res.Reason))
		}
		report.Results = append(report.Results, res)
	}
	if err := record(math.MaxInt64); err != nil {
		return report, err
	}

	report.Stats = store.Stats()
	if want := f.ExpectStats; want != nil {
		if want.EntryCount != report.Stats.EntryCount || want.PhraseCount != report.Stats.PhraseCount {
			report.StatsPassed = false
			report.StatsReason = fmt.Sprintf("expected %d entries / %d phrases, got %d / %d",
				want.EntryCount, want.PhraseCount, report.Stats.EntryCount, report.Stats.PhraseCount)
		}
	}
	return report, nil
}

func evaluate(q *FixtureQuery, got []patterns.Candidate) QueryResult {
	res := QueryResult{Name: q.Name, Turn: q.Turn, Got: got, Expect: q.Expect, Passed: true}

	texts := make([]string, len(got))
	for i, c := range got {
		texts[i] = c.Text
	}
	expect := q.Expect
	if expect == nil {
		expect = []string{}
	}
	if !slices.Equal(texts, expect) {
		res.Passed = false
		res.Reason = fmt.Sprintf("expected %q, got %q", expect, texts)
		return res
	}
	if q.ExpectTopScore != nil {
		if len(got) == 0 {
			res.Passed = false
			res.Reason = "expected a top score, got no candidates"
		} else if d := math.Abs(got[0].Score - *q.ExpectTopScore); d > scoreTolerance {
			res.Passed = false
			res.Reason = fmt.Sprintf("expected top score %.6f, got %.6f", *q.ExpectTopScore, got[0].Score)
		}
	}
	return res
}

// Summarize computes aggregate counts from a report.
func Summarize(r Report) Summary {
	s := Summary{Queries: len(r.Results), Stats: r.Stats}
	for _, q := range r.Results {
		if q.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// #endregion replay

// #region run-files
// FileReport pairs a fixture path with its replay report.
type FileReport struct {
	Path   string
	Report Report
}

// RunFiles replays every fixture concurrently. Reports keep the order of paths. The first
// load or replay error cancels the rest.
func RunFiles(ctx context.Context, paths []string, logger *zap.Logger) ([]FileReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reports := make([]FileReport, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			f, err := LoadFixture(path)
			if err != nil {
				return err
			}
			rep, err := Replay(gctx, f, logger.With(zap.String("fixture", path)))
			if err != nil {
				return fmt.Errorf("replay %s: %w", path, err)
			}
			reports[i] = FileReport{Path: path, Report: rep}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// #endregion run-files

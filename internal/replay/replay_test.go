package replay

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/patterns"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

// #region helpers
func grief() signature.FeltContext {
	return signature.FeltContext{
		Participants:  []string{"user"},
		Category:      "grief",
		Mechanism:     "witnessing",
		Coherence:     0.55,
		Urgency:       0.3,
		Energy:        0.5,
		FieldStrength: 0.5,
		Polyvagal:     signature.Ventral,
		Zone:          2,
	}
}

func ptr[T any](v T) *T { return &v }

// #endregion helpers

// #region fixture-tests

// assertPassed fails t for every query or stats check in r that did not pass.
func assertPassed(t *testing.T, r Report) {
	t.Helper()
	for _, q := range r.Results {
		assert.True(t, q.Passed, "query %q (turn %d): %s", q.Name, q.Turn, q.Reason)
	}
	assert.True(t, r.StatsPassed, "stats: %s", r.StatsReason)
}

// TestFixture_Scenarios is the primary regression fixture: first-observation quality,
// fuzzy tolerance, ranking and alternating feedback.
func TestFixture_Scenarios(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "scenarios.json"))
	require.NoError(t, err)

	report, err := Replay(context.Background(), f, nil)
	require.NoError(t, err)
	assert.Equal(t, len(f.Interactions), report.Recorded)
	require.Len(t, report.Results, len(f.Queries))
	assertPassed(t, report)
	assert.True(t, report.OK())
}

func TestFixture_Eviction(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "eviction.json"))
	require.NoError(t, err)
	require.Equal(t, 3, f.Config.ToPatternConfig().MaxEntries)

	report, err := Replay(context.Background(), f, nil)
	require.NoError(t, err)
	assertPassed(t, report)
	assert.Equal(t, 1.0, report.Stats.CapacityUtilization)
}

func TestLoadFixture_Errors(t *testing.T) {
	_, err := LoadFixture(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err, "missing fixture")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"interactions": 3}`), 0o644))
	_, err = LoadFixture(path)
	assert.Error(t, err, "parse error")
}

// #endregion fixture-tests

// #region replay-tests
func TestReplay_MismatchIsReportedNotReturned(t *testing.T) {
	f := &Fixture{
		Interactions: []FixtureInteraction{{Turn: 1, Context: grief(), Phrase: "I hear you", Satisfaction: 0.9}},
		Queries: []FixtureQuery{
			{Name: "wrong text", Turn: 1, Context: grief(), K: 1, Expect: []string{"something else"}},
			{Name: "wrong score", Turn: 1, Context: grief(), K: 1, Expect: []string{"I hear you"}, ExpectTopScore: ptr(0.5)},
			{Name: "right", Turn: 1, Context: grief(), K: 1, Expect: []string{"I hear you"}, ExpectTopScore: ptr(0.9)},
		},
		ExpectStats: &FixtureStats{EntryCount: 2, PhraseCount: 1},
	}

	report, err := Replay(context.Background(), f, nil)
	require.NoError(t, err)
	sum := Summarize(report)
	assert.Equal(t, 3, sum.Queries)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 2, sum.Failed)
	assert.False(t, report.StatsPassed, "stats mismatch")
	assert.False(t, report.OK())
}

func TestReplay_QueriesSeeOnlyEarlierTurns(t *testing.T) {
	f := &Fixture{
		Interactions: []FixtureInteraction{
			{Turn: 5, Context: grief(), Phrase: "late", Satisfaction: 0.9},
			{Turn: 1, Context: grief(), Phrase: "early", Satisfaction: 0.9},
		},
		Queries: []FixtureQuery{
			{Name: "after both", Turn: 5, Context: grief(), K: 5, Expect: []string{"late", "early"}},
			{Name: "before late", Turn: 2, Context: grief(), K: 5, Expect: []string{"early"}},
		},
	}
	report, err := Replay(context.Background(), f, nil)
	require.NoError(t, err)
	assertPassed(t, report)
}

func TestReplay_InvalidInteraction(t *testing.T) {
	bad := grief()
	bad.Zone = 9
	f := &Fixture{Interactions: []FixtureInteraction{{Turn: 1, Context: bad, Phrase: "p", Satisfaction: 0.5}}}
	_, err := Replay(context.Background(), f, nil)
	assert.ErrorIs(t, err, signature.ErrInvalidValue, "zone outside [1,5]")

	f = &Fixture{Interactions: []FixtureInteraction{{Turn: 1, Context: grief(), Phrase: "p", Satisfaction: 2}}}
	_, err = Replay(context.Background(), f, nil)
	assert.ErrorIs(t, err, signature.ErrInvalidValue, "satisfaction outside [0,1]")
}

func TestRunFiles(t *testing.T) {
	paths := []string{
		filepath.Join("testdata", "scenarios.json"),
		filepath.Join("testdata", "eviction.json"),
	}
	reports, err := RunFiles(context.Background(), paths, nil)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for i, r := range reports {
		assert.Equal(t, paths[i], r.Path)
		assert.True(t, r.Report.OK(), r.Path)
	}

	_, err = RunFiles(context.Background(), append(paths, "testdata/nope.json"), nil)
	assert.Error(t, err, "missing fixture")
}

// #endregion replay-tests

// #region export-tests
func TestFromOutcomes_RoundTripsThroughReplay(t *testing.T) {
	other := grief()
	other.Category = "joy"
	other.Coherence = 0.91
	keyOf := func(fc signature.FeltContext) string {
		sig, err := signature.Build(fc)
		require.NoError(t, err)
		return signature.Project(sig, signature.Standard).String()
	}

	// Newest first, as the journal returns them.
	outcomes := []logging.Outcome{
		{EventID: "e4", EntryKey: keyOf(grief()), Phrase: "stay with it", Satisfaction: 0.7, Turn: 4, Action: logging.ActionInsert},
		{EventID: "e3", EntryKey: keyOf(other), Phrase: "wonderful", Satisfaction: 0.95, Turn: 3, Action: logging.ActionInsert},
		{EventID: "e2", EntryKey: keyOf(grief()), Phrase: "I hear you", Satisfaction: 0.2, Turn: 2, Action: logging.ActionUpdate},
		{EventID: "e1", EntryKey: keyOf(grief()), Phrase: "I hear you", Satisfaction: 0.9, Turn: 1, Action: logging.ActionInsert},
	}

	f, err := FromOutcomes(context.Background(), outcomes, patterns.DefaultConfig(), 5)
	require.NoError(t, err)
	require.Len(t, f.Interactions, 4)
	assert.Equal(t, int64(1), f.Interactions[0].Turn, "chronological order")
	require.Len(t, f.Queries, 2, "one query per key")
	assert.Equal(t, []string{"stay with it", "I hear you"}, f.Queries[0].Expect)

	// Through JSON and back, the fixture must pass against a fresh store.
	path := filepath.Join(t.TempDir(), "exported.json")
	data, err := json.MarshalIndent(f, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	loaded, err := LoadFixture(path)
	require.NoError(t, err)

	report, err := Replay(context.Background(), loaded, nil)
	require.NoError(t, err)
	assertPassed(t, report)
	assert.True(t, report.OK())
}

func TestFromOutcomes_BadKey(t *testing.T) {
	_, err := FromOutcomes(context.Background(), []logging.Outcome{{EventID: "x", EntryKey: "nope", Phrase: "p", Satisfaction: 0.5}}, patterns.DefaultConfig(), 3)
	assert.ErrorIs(t, err, signature.ErrInvalidValue)
}

// #endregion export-tests

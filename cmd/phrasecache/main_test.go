package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/patterns"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/persist"
)

const griefContext = `{
  "participants": ["user", "assistant"],
  "category": "grief",
  "mechanism": "witnessing",
  "coherence": 0.55,
  "urgency": 0.31,
  "energy": 0.5,
  "field_strength": 0.9,
  "polyvagal_state": "ventral",
  "zone": 2,
  "kairos": true,
  "dominant_label": "loss"
}`

// #region helpers
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// #endregion helpers

func TestCLI_RecordCandidatesStatsExport(t *testing.T) {
	dir := t.TempDir()
	store := []string{"--backend", "file", "--path", filepath.Join(dir, "cache.json")}
	ctxFile := writeFile(t, dir, "grief.json", griefContext)

	_, err := run(t, "", append(store, "record", "--context", ctxFile, "--phrase", "I hear you", "--satisfaction", "0.9", "--turn", "1")...)
	require.NoError(t, err)
	_, err = run(t, griefContext, append(store, "record", "--phrase", "That sounds heavy", "--satisfaction", "0.3", "--turn", "2")...)
	require.NoError(t, err, "context from stdin")

	out, err := run(t, "", append(store, "candidates", "--context", ctxFile, "--turn", "2", "--json")...)
	require.NoError(t, err)
	var rows []struct {
		Text  string  `json:"text"`
		Score float64 `json:"score"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "I hear you", rows[0].Text)
	assert.InDelta(t, 0.9*0.999, rows[0].Score, 1e-3)

	out, err = run(t, "", append(store, "candidates", "--context", ctxFile, "--k", "1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "I hear you")
	assert.NotContains(t, out, "That sounds heavy")

	out, err = run(t, "", append(store, "stats")...)
	require.NoError(t, err)
	var st patterns.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 1, st.EntryCount)
	assert.Equal(t, 2, st.PhraseCount)

	out, err = run(t, "", append(store, "export")...)
	require.NoError(t, err)
	var doc persist.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc, 1)
	for _, e := range doc {
		assert.Len(t, e.Phrases, 2)
	}
}

func TestCLI_RecordRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	store := []string{"--backend", "memory"}

	_, err := run(t, griefContext, append(store, "record", "--phrase", "p", "--satisfaction", "1.5")...)
	assert.Error(t, err)

	_, err = run(t, `{"zone": 9}`, append(store, "record", "--phrase", "p", "--satisfaction", "0.5")...)
	assert.Error(t, err)

	_, err = run(t, "", append(store, "record", "--context", filepath.Join(dir, "missing.json"), "--phrase", "p", "--satisfaction", "0.5")...)
	assert.Error(t, err)
}

func TestCLI_SnapshotsAndOutcomes(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "phrasecache.yaml", `
persistence:
  backend: sqlite
  path: `+filepath.Join(dir, "cache.db")+`
  journal: true
`)
	ctxFile := writeFile(t, dir, "grief.json", griefContext)
	base := []string{"--config", cfgPath}

	for i, sat := range []string{"0.9", "0.4"} {
		_, err := run(t, "", append(base, "record", "--context", ctxFile, "--phrase", "I hear you", "--satisfaction", sat, "--turn", string(rune('1'+i)))...)
		require.NoError(t, err)
	}

	out, err := run(t, "", append(base, "snapshots")...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3, "header plus one snapshot per record")

	out, err = run(t, "", append(base, "outcomes")...)
	require.NoError(t, err)
	assert.Contains(t, out, "insert")
	assert.Contains(t, out, "update")

	_, err = run(t, "", "--backend", "memory", "snapshots")
	assert.Error(t, err, "snapshots need sqlite")
	_, err = run(t, "", "--backend", "memory", "outcomes")
	assert.Error(t, err, "outcomes need the journal")
}

func TestCLI_FixtureExportReplays(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "phrasecache.yaml", `
persistence:
  backend: sqlite
  path: `+filepath.Join(dir, "cache.db")+`
  journal: true
`)
	ctxFile := writeFile(t, dir, "grief.json", griefContext)
	base := []string{"--config", cfgPath}

	steps := []struct{ phrase, sat, turn string }{
		{"I hear you", "0.9", "1"},
		{"That sounds heavy", "0.3", "2"},
		{"I hear you", "0.7", "3"},
	}
	for _, st := range steps {
		_, err := run(t, "", append(base, "record", "--context", ctxFile, "--phrase", st.phrase, "--satisfaction", st.sat, "--turn", st.turn)...)
		require.NoError(t, err)
	}

	fixture := filepath.Join(dir, "exported.json")
	out, err := run(t, "", append(base, "fixture-export", "--out", fixture, "--k", "3")...)
	require.NoError(t, err)
	assert.Contains(t, out, "3 interactions")

	out, err = run(t, "", "--backend", "memory", "replay", "--fixture", fixture)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS")

	_, err = run(t, "", "--backend", "memory", "fixture-export")
	assert.Error(t, err, "export needs the journal")
}

func TestCLI_Key(t *testing.T) {
	out, err := run(t, griefContext, "key")
	require.NoError(t, err)
	assert.Equal(t, `[["assistant","user"],2,"grief","witnessing",5,3,"ventral",2,2,true,4,"loss"]`, strings.TrimSpace(out))

	out, err = run(t, griefContext, "key", "--precision", "coarse")
	require.NoError(t, err)
	assert.Equal(t, `[["assistant","user"],2,"grief","witnessing"]`, strings.TrimSpace(out))

	out, err = run(t, griefContext, "key", "--fuzzy")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 9)

	_, err = run(t, griefContext, "key", "--precision", "exact")
	assert.Error(t, err)
}

func TestCLI_Replay(t *testing.T) {
	fixture := filepath.Join("..", "..", "internal", "replay", "testdata", "scenarios.json")
	out, err := run(t, "", "--backend", "memory", "replay", "--fixture", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")

	bad := writeFile(t, t.TempDir(), "bad.json", `{
  "interactions": [],
  "queries": [{"name": "expects a phrase", "turn": 1, "context": `+griefContext+`, "k": 1, "expect": ["missing"]}]
}`)
	out, err = run(t, "", "--backend", "memory", "replay", "--fixture", fixture, "--fixture", bad)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "expects a phrase")
}

func TestCLI_ConfigErrors(t *testing.T) {
	_, err := run(t, "", "--backend", "redis", "stats")
	assert.Error(t, err)

	_, err = run(t, "", "--config", filepath.Join(t.TempDir(), "nope.toml"), "stats")
	assert.Error(t, err)
}

func TestLoadConfig_Layering(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "phrasecache.toml", `
[store]
max_entries = 20

[persistence]
backend = "file"
path = "from-file.json"
`)
	env := map[string]string{"PHRASECACHE_MAX_ENTRIES": "30", "PHRASECACHE_PATH": "from-env.json"}
	opts := &rootOptions{configPath: cfgPath, path: "from-flag.json", getenv: func(k string) string { return env[k] }}

	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Store.MaxEntries, "env beats file")
	assert.Equal(t, "from-flag.json", cfg.Persistence.Path, "flag beats env")
	assert.Equal(t, "file", cfg.Persistence.Backend)
}

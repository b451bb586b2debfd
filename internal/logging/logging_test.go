package logging

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	_ "modernc.org/sqlite"
)

// #region helpers
func setupJournal(t *testing.T) (*Journal, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	j, err := NewJournal(db)
	require.NoError(t, err)
	return j, db
}

// #endregion helpers

// #region journal-tests
func TestLogOutcome_Success(t *testing.T) {
	j, db := setupJournal(t)

	err := j.LogOutcome(Outcome{
		EntryKey:     `[["user"],1,"grief"]`,
		Phrase:       "I hear you",
		Satisfaction: 0.9,
		Turn:         3,
		Action:       ActionInsert,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM outcome_log").Scan(&count))
	assert.Equal(t, 1, count)

	var evicted sql.NullString
	require.NoError(t, db.QueryRow("SELECT evicted_key FROM outcome_log").Scan(&evicted))
	assert.False(t, evicted.Valid, "evicted_key should be NULL, got %q", evicted.String)
}

func TestLogOutcome_FillsIDAndTime(t *testing.T) {
	j, _ := setupJournal(t)

	before := time.Now().UTC()
	require.NoError(t, j.LogOutcome(Outcome{EntryKey: "k", Phrase: "p", Action: ActionUpdate, EvictedKey: "old"}))

	got, err := j.RecentOutcomes(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].EventID)
	assert.False(t, got[0].CreatedAt.Before(before), "created_at filled from the clock")
	assert.Equal(t, "old", got[0].EvictedKey)
	assert.Equal(t, ActionUpdate, got[0].Action)
}

func TestRecentOutcomes_NewestFirstAndLimit(t *testing.T) {
	j, _ := setupJournal(t)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, j.LogOutcome(Outcome{EntryKey: "k", Phrase: "p", Turn: i, Action: ActionUpdate}))
	}

	got, err := j.RecentOutcomes(3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, want := range []int64{5, 4, 3} {
		assert.Equal(t, want, got[i].Turn, "outcome %d", i)
	}
}

func TestLogOutcome_ClosedDB(t *testing.T) {
	j, db := setupJournal(t)
	db.Close()
	assert.Error(t, j.LogOutcome(Outcome{EntryKey: "k", Phrase: "p", Action: ActionInsert}))
}

// #endregion journal-tests

// #region logger-tests
func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(DefaultConfig())
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger(Config{Level: "loud"})
	assert.Error(t, err, "unknown level")
	_, err = NewLogger(Config{Encoding: "xml"})
	assert.Error(t, err, "unknown encoding")

	dev, err := NewLogger(Config{Level: "debug", Encoding: "console", Development: true})
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}

// #endregion logger-tests

package logging

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS outcome_log (
	event_id     TEXT PRIMARY KEY,
	entry_key    TEXT NOT NULL,
	phrase       TEXT NOT NULL,
	satisfaction REAL NOT NULL,
	turn         INTEGER NOT NULL,
	action       TEXT NOT NULL,
	evicted_key  TEXT,
	created_at   TEXT NOT NULL
);
`

// #region journal
// Journal appends Record outcomes to the outcome_log table. It shares a database with
// the sqlite persistence backend when one is in use.
type Journal struct {
	db *sql.DB
}

// NewJournal creates the outcome_log table if needed.
func NewJournal(db *sql.DB) (*Journal, error) {
	if _, err := db.Exec(journalSchema); err != nil {
		return nil, fmt.Errorf("migrate outcome_log: %w", err)
	}
	return &Journal{db: db}, nil
}

// LogOutcome writes one outcome row. EventID and CreatedAt are filled in when empty.
func (j *Journal) LogOutcome(o Outcome) error {
	if o.EventID == "" {
		o.EventID = uuid.New().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	_, err := j.db.Exec(
		`INSERT INTO outcome_log (event_id, entry_key, phrase, satisfaction, turn, action, evicted_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.EventID,
		o.EntryKey,
		o.Phrase,
		o.Satisfaction,
		o.Turn,
		string(o.Action),
		nullIfEmpty(o.EvictedKey),
		o.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log outcome: %w", err)
	}
	return nil
}

// RecentOutcomes returns up to limit rows, newest first.
func (j *Journal) RecentOutcomes(limit int) ([]Outcome, error) {
	rows, err := j.db.Query(
		`SELECT event_id, entry_key, phrase, satisfaction, turn, action, evicted_key, created_at
		 FROM outcome_log ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		var action, created string
		var evicted sql.NullString
		if err := rows.Scan(&o.EventID, &o.EntryKey, &o.Phrase, &o.Satisfaction, &o.Turn, &action, &evicted, &created); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Action = Action(action)
		o.EvictedKey = evicted.String
		o.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, o)
	}
	return out, rows.Err()
}

// #endregion journal

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers

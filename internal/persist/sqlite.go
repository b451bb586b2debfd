package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pattern_entries (
	entry_key   TEXT PRIMARY KEY,
	entry_json  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	snapshot_id   TEXT PRIMARY KEY,
	parent_id     TEXT,
	kind          TEXT NOT NULL,
	put_count     INTEGER NOT NULL,
	delete_count  INTEGER NOT NULL,
	entry_count   INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES snapshots(snapshot_id)
);

CREATE TABLE IF NOT EXISTS active_snapshot (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	snapshot_id  TEXT NOT NULL,
	FOREIGN KEY (snapshot_id) REFERENCES snapshots(snapshot_id)
);
`

// #endregion schema

// #region snapshot
// Snapshot records one durable write to the entries table.
type Snapshot struct {
	SnapshotID  string
	ParentID    string
	Kind        string // "save" | "apply"
	PutCount    int
	DeleteCount int
	EntryCount  int
	CreatedAt   time.Time
}

// #endregion snapshot

// #region adapter-struct
// SQLiteAdapter stores one row per entry and chains every write as a snapshot, with an
// active pointer to the latest one.
type SQLiteAdapter struct {
	db *sql.DB
}

// #endregion adapter-struct

// #region constructor
// NewSQLiteAdapter opens a SQLite database and runs migrations.
func NewSQLiteAdapter(dbPath string) (*SQLiteAdapter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", ErrStorageUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pragma: %v", ErrStorageUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pragma fk: %v", ErrStorageUnavailable, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ErrStorageUnavailable, err)
	}
	return &SQLiteAdapter{db: db}, nil
}

// Close closes the underlying database connection.
func (a *SQLiteAdapter) Close() error {
	return a.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. the outcome journal).
func (a *SQLiteAdapter) DB() *sql.DB {
	return a.db
}

// #endregion constructor

// #region load
// Load reads every entry row.
func (a *SQLiteAdapter) Load(ctx context.Context) (Document, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT entry_key, entry_json FROM pattern_entries`)
	if err != nil {
		return nil, fmt.Errorf("%w: load entries: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	doc := Document{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %v", ErrStorageUnavailable, err)
		}
		var entry EntryDoc
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("%w: %w: entry %s: %v", ErrStorageUnavailable, ErrCorrupt, key, err)
		}
		doc[key] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate entries: %v", ErrStorageUnavailable, err)
	}
	return doc, nil
}

// #endregion load

// #region save
// Save replaces all entries and records a "save" snapshot in one transaction.
func (a *SQLiteAdapter) Save(ctx context.Context, doc Document) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_entries`); err != nil {
		return fmt.Errorf("%w: clear entries: %v", ErrStorageUnavailable, err)
	}
	now := time.Now().UTC()
	for key, entry := range doc {
		if err := upsertEntry(ctx, tx, key, entry, now); err != nil {
			return err
		}
	}
	if err := recordSnapshot(ctx, tx, "save", len(doc), 0, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Apply upserts and deletes the changed entries and records an "apply" snapshot.
func (a *SQLiteAdapter) Apply(ctx context.Context, changes Changes) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	for _, key := range changes.Delete {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_entries WHERE entry_key = ?`, key); err != nil {
			return fmt.Errorf("%w: delete entry: %v", ErrStorageUnavailable, err)
		}
	}
	now := time.Now().UTC()
	for key, entry := range changes.Put {
		if err := upsertEntry(ctx, tx, key, entry, now); err != nil {
			return err
		}
	}
	if err := recordSnapshot(ctx, tx, "apply", len(changes.Put), len(changes.Delete), now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func upsertEntry(ctx context.Context, tx *sql.Tx, key string, entry EntryDoc, now time.Time) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode entry: %v", ErrStorageUnavailable, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO pattern_entries (entry_key, entry_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(entry_key) DO UPDATE SET entry_json = excluded.entry_json, updated_at = excluded.updated_at`,
		key, string(raw), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert entry: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// #endregion save

// #region snapshots
func recordSnapshot(ctx context.Context, tx *sql.Tx, kind string, puts, deletes int, now time.Time) error {
	var parent sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT snapshot_id FROM active_snapshot WHERE id = 1`).Scan(&parent)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("%w: read active snapshot: %v", ErrStorageUnavailable, err)
	}

	var entryCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pattern_entries`).Scan(&entryCount); err != nil {
		return fmt.Errorf("%w: count entries: %v", ErrStorageUnavailable, err)
	}

	var parentPtr interface{}
	if parent.Valid {
		parentPtr = parent.String
	}
	id := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, parent_id, kind, put_count, delete_count, entry_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, parentPtr, kind, puts, deletes, entryCount, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: insert snapshot: %v", ErrStorageUnavailable, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_snapshot (id, snapshot_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET snapshot_id = excluded.snapshot_id`,
		id,
	)
	if err != nil {
		return fmt.Errorf("%w: set active snapshot: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// ListSnapshots returns the most recent snapshots, newest first.
func (a *SQLiteAdapter) ListSnapshots(limit int) ([]Snapshot, error) {
	rows, err := a.db.Query(
		`SELECT snapshot_id, parent_id, kind, put_count, delete_count, entry_count, created_at
		 FROM snapshots ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var s Snapshot
		var parentID sql.NullString
		var createdStr string
		if err := rows.Scan(&s.SnapshotID, &parentID, &s.Kind, &s.PutCount, &s.DeleteCount, &s.EntryCount, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if parentID.Valid {
			s.ParentID = parentID.String
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// ActiveSnapshot returns the ID of the latest snapshot, or "" if nothing was written yet.
func (a *SQLiteAdapter) ActiveSnapshot() (string, error) {
	var id string
	err := a.db.QueryRow(`SELECT snapshot_id FROM active_snapshot WHERE id = 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get active snapshot: %w", err)
	}
	return id, nil
}

// #endregion snapshots

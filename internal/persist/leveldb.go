package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Entries live under "e|<key>" so the keyspace can carry other record kinds later.
const prefixEntry = "e|"

// #region leveldb-adapter
// LevelDBAdapter stores one record per entry in a LevelDB directory.
type LevelDBAdapter struct {
	db *leveldb.DB
}

// NewLevelDBAdapter opens (or creates) the LevelDB directory at path.
func NewLevelDBAdapter(path string) (*LevelDBAdapter, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open leveldb %s: %v", ErrStorageUnavailable, path, err)
	}
	return &LevelDBAdapter{db: db}, nil
}

// Load scans every entry record.
func (a *LevelDBAdapter) Load(ctx context.Context) (Document, error) {
	iter := a.db.NewIterator(util.BytesPrefix([]byte(prefixEntry)), nil)
	defer iter.Release()

	doc := Document{}
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		key := string(iter.Key()[len(prefixEntry):])
		var entry EntryDoc
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, fmt.Errorf("%w: %w: entry %s: %v", ErrStorageUnavailable, ErrCorrupt, key, err)
		}
		doc[key] = entry
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: iterate: %v", ErrStorageUnavailable, err)
	}
	return doc, nil
}

// Save replaces every entry record in one synced batch.
func (a *LevelDBAdapter) Save(ctx context.Context, doc Document) error {
	batch := new(leveldb.Batch)

	iter := a.db.NewIterator(util.BytesPrefix([]byte(prefixEntry)), nil)
	for iter.Next() {
		k := string(iter.Key()[len(prefixEntry):])
		if _, keep := doc[k]; !keep {
			batch.Delete([]byte(prefixEntry + k))
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("%w: iterate: %v", ErrStorageUnavailable, err)
	}

	for k, entry := range doc {
		if err := putEntry(batch, k, entry); err != nil {
			return err
		}
	}
	return a.write(ctx, batch)
}

// Apply writes a change set in one synced batch.
func (a *LevelDBAdapter) Apply(ctx context.Context, changes Changes) error {
	batch := new(leveldb.Batch)
	for _, k := range changes.Delete {
		batch.Delete([]byte(prefixEntry + k))
	}
	for k, entry := range changes.Put {
		if err := putEntry(batch, k, entry); err != nil {
			return err
		}
	}
	return a.write(ctx, batch)
}

func (a *LevelDBAdapter) write(ctx context.Context, batch *leveldb.Batch) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := a.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("%w: write batch: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func putEntry(batch *leveldb.Batch, key string, entry EntryDoc) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode entry: %v", ErrStorageUnavailable, err)
	}
	batch.Put([]byte(prefixEntry+key), data)
	return nil
}

// Close releases the database lock.
func (a *LevelDBAdapter) Close() error {
	return a.db.Close()
}

// #endregion leveldb-adapter

package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// #region file-adapter
// FileAdapter keeps the document as a single JSON file. Writes go to a temp file in the
// same directory which is synced and renamed over the target, so a crash leaves either the
// old or the new document.
type FileAdapter struct {
	path string
	mu   sync.Mutex
}

// NewFileAdapter returns an adapter for the JSON document at path. The file is created on
// first save.
func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{path: path}
}

// Load reads the document. A missing file is an empty document.
func (a *FileAdapter) Load(ctx context.Context) (Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorageUnavailable, a.path, err)
	}
	if len(data) == 0 {
		return Document{}, nil
	}
	doc := Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w: decode %s: %v", ErrStorageUnavailable, ErrCorrupt, a.path, err)
	}
	return doc, nil
}

// Save atomically replaces the document on disk.
func (a *FileAdapter) Save(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if doc == nil {
		doc = Document{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", ErrStorageUnavailable, err)
	}

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", ErrStorageUnavailable, dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(a.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp: %v", ErrStorageUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync temp: %v", ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, a.path); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrStorageUnavailable, err)
	}
	// The rename is only durable once the directory entry is.
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("%w: sync dir %s: %v", ErrStorageUnavailable, dir, err)
	}
	return nil
}

var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

// Close is a no-op; the file is not held open between calls.
func (a *FileAdapter) Close() error {
	return nil
}

// #endregion file-adapter

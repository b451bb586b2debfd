package persist

import (
	"context"
	"fmt"
	"sync"
)

// #region memory-adapter
// MemoryAdapter keeps the document in process. Load and Save copy, so callers never share
// maps with it. FailSaves makes every write fail, for exercising storage-error paths.
type MemoryAdapter struct {
	mu        sync.Mutex
	doc       Document
	saves     int
	failSaves bool
}

// NewMemoryAdapter returns an adapter seeded with a copy of doc (nil is empty).
func NewMemoryAdapter(doc Document) *MemoryAdapter {
	if doc == nil {
		doc = Document{}
	}
	return &MemoryAdapter{doc: doc.Clone()}
}

// FailSaves toggles write failures.
func (a *MemoryAdapter) FailSaves(fail bool) {
	a.mu.Lock()
	a.failSaves = fail
	a.mu.Unlock()
}

// Saves returns the number of successful writes.
func (a *MemoryAdapter) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}

func (a *MemoryAdapter) Load(ctx context.Context) (Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doc.Clone(), nil
}

func (a *MemoryAdapter) Save(ctx context.Context, doc Document) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failSaves {
		return fmt.Errorf("%w: memory adapter set to fail", ErrStorageUnavailable)
	}
	a.doc = doc.Clone()
	a.saves++
	return nil
}

func (a *MemoryAdapter) Apply(ctx context.Context, changes Changes) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failSaves {
		return fmt.Errorf("%w: memory adapter set to fail", ErrStorageUnavailable)
	}
	changes.ApplyTo(a.doc)
	a.saves++
	return nil
}

func (a *MemoryAdapter) Close() error { return nil }

// #endregion memory-adapter

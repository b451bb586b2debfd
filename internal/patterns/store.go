package patterns

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/learner"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/persist"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

// #region options
// Option configures a Store at Open.
type Option func(*Store)

// WithLogger sets the store logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithJournal records every applied Record call to j.
func WithJournal(j Journal) Option {
	return func(s *Store) { s.journal = j }
}

// #endregion options

// #region store-struct
// Store is a bounded map from standard keys to learned phrase entries, backed by a
// persistence adapter. Every public method takes the same lock.
type Store struct {
	mu      sync.Mutex
	cfg     Config
	adapter persist.Adapter
	logger  *zap.Logger
	journal Journal

	entries map[signature.Key]Entry

	// Durable work not yet written: entries to upsert and encoded keys to delete.
	dirty    map[signature.Key]struct{}
	removed  map[string]struct{}
	flushErr error

	closed bool
	stop   chan struct{}
	done   chan struct{}
}

// #endregion store-struct

// #region open
// Open loads the store from adapter. A failed or corrupt load is logged and the store
// starts empty. With cfg.FlushInterval > 0 a background flusher runs until Close.
func Open(ctx context.Context, adapter persist.Adapter, cfg Config, opts ...Option) (*Store, error) {
	if adapter == nil {
		return nil, fmt.Errorf("open store: nil adapter")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s := &Store{
		cfg:     cfg,
		adapter: adapter,
		logger:  zap.NewNop(),
		entries: make(map[signature.Key]Entry),
		dirty:   make(map[signature.Key]struct{}),
		removed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	s.loadLocked(ctx)
	s.mu.Unlock()

	if cfg.FlushInterval > 0 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.flushLoop(cfg.FlushInterval)
	}
	return s, nil
}

func (s *Store) loadLocked(ctx context.Context) {
	doc, err := s.adapter.Load(ctx)
	if err != nil {
		s.logger.Warn("pattern store load failed, starting empty",
			zap.Error(err), zap.Bool("corrupt", errors.Is(err, persist.ErrCorrupt)))
		return
	}

	for enc, ed := range doc {
		e, err := DecodeEntry(enc, ed)
		if err != nil {
			s.logger.Warn("skipping undecodable entry", zap.String("key", enc), zap.Error(err))
			continue
		}
		if e.Key.String() != enc {
			// Stored under a non-canonical spelling; rewrite under the canonical one.
			s.removed[enc] = struct{}{}
			s.dirty[e.Key] = struct{}{}
		}
		s.entries[e.Key] = e
	}

	if over := len(s.entries) - s.cfg.MaxEntries; over > 0 {
		now := s.latestTurnLocked()
		for i := 0; i < over; i++ {
			victim, score, _ := selectVictim(s.entries, now, s.cfg.Learner)
			s.evictLocked(victim, score, true)
		}
		s.logger.Warn("loaded state exceeded capacity, trimmed",
			zap.Int("evicted", over), zap.Int("max_entries", s.cfg.MaxEntries))
	}

	if len(s.dirty) > 0 || len(s.removed) > 0 {
		if err := s.flushLocked(ctx); err != nil {
			s.logger.Warn("could not persist load-time cleanup", zap.Error(err))
		}
	}
	s.logger.Info("pattern store loaded", zap.Int("entries", len(s.entries)))
}

func (s *Store) latestTurnLocked() int64 {
	var latest int64
	first := true
	for _, e := range s.entries {
		if t := e.lastTurn(); first || t > latest {
			latest, first = t, false
		}
	}
	return latest
}

// #endregion open

// #region record
// Record applies one satisfaction observation for text under sig's standard key.
// In synchronous mode the change is durable before it becomes visible; if storage fails
// nothing changes and the error wraps persist.ErrStorageUnavailable.
func (s *Store) Record(ctx context.Context, sig signature.Signature, text string, satisfaction float64, turn int64) error {
	if err := learner.ValidateSatisfaction(satisfaction); err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("%w: empty phrase text", signature.ErrInvalidValue)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: phrase text is not valid UTF-8", signature.ErrInvalidValue)
	}
	key := signature.Project(sig, signature.Standard)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.flushErr != nil {
		if err := s.flushLocked(ctx); err != nil {
			return fmt.Errorf("record: pending flush: %w", err)
		}
	}

	next, action, err := s.observeLocked(key, text, satisfaction, turn)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	var (
		evict       bool
		victim      signature.Key
		victimScore float64
	)
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.cfg.MaxEntries {
		var ok bool
		victim, victimScore, ok = selectVictim(s.entries, turn, s.cfg.Learner)
		if !ok || len(s.entries)-1 >= s.cfg.MaxEntries {
			s.logger.DPanic("eviction could not free a slot",
				zap.Int("entries", len(s.entries)), zap.Int("max_entries", s.cfg.MaxEntries))
			return ErrCapacityExceeded
		}
		evict = true
	}

	if s.cfg.FlushInterval == 0 {
		changes := s.pendingChangesLocked()
		if evict {
			enc := victim.String()
			delete(changes.Put, enc)
			changes.Delete = append(changes.Delete, enc)
		}
		changes.Put[key.String()] = EncodeEntry(next)
		if err := s.persistLocked(ctx, changes); err != nil {
			return fmt.Errorf("record: %w", err)
		}
		s.clearPendingLocked()
	}

	if evict {
		s.evictLocked(victim, victimScore, s.cfg.FlushInterval > 0)
	}
	s.entries[key] = next
	if s.cfg.FlushInterval > 0 {
		s.dirty[key] = struct{}{}
		delete(s.removed, key.String())
	}

	s.logger.Debug("recorded outcome",
		zap.String("key", key.String()), zap.String("phrase", text),
		zap.Float64("satisfaction", satisfaction), zap.Int64("turn", turn))
	s.journalLocked(key, text, satisfaction, turn, action, evict, victim)
	return nil
}

// observeLocked returns the entry for key with one observation applied. s.entries is
// not modified.
func (s *Store) observeLocked(key signature.Key, text string, satisfaction float64, turn int64) (Entry, logging.Action, error) {
	cur, ok := s.entries[key]
	if !ok {
		std, err := signature.FromKey(key)
		if err != nil {
			return Entry{}, "", err
		}
		cur = Entry{Key: key, Signature: std}
	}

	next := Entry{Key: cur.Key, Signature: cur.Signature, Phrases: slices.Clone(cur.Phrases)}
	i := slices.IndexFunc(next.Phrases, func(p learner.PhraseRecord) bool { return p.Text == text })
	if i >= 0 {
		next.Phrases[i] = learner.Observe(next.Phrases[i], satisfaction, turn, s.cfg.Learner)
		return next, logging.ActionUpdate, nil
	}
	rec := learner.Observe(learner.NewRecord(text, satisfaction), satisfaction, turn, s.cfg.Learner)
	next.Phrases = append(next.Phrases, rec)
	return next, logging.ActionInsert, nil
}

// evictLocked drops victim from memory. pending queues the durable delete for the next
// flush; synchronous records have already written it.
func (s *Store) evictLocked(victim signature.Key, score float64, pending bool) {
	e := s.entries[victim]
	delete(s.entries, victim)
	delete(s.dirty, victim)
	if pending {
		s.removed[victim.String()] = struct{}{}
	}
	s.logger.Info("evicted pattern entry",
		zap.String("key", victim.String()), zap.Float64("score", score),
		zap.Int("phrases", len(e.Phrases)))
}

func (s *Store) journalLocked(key signature.Key, text string, satisfaction float64, turn int64, action logging.Action, evict bool, victim signature.Key) {
	if s.journal == nil {
		return
	}
	o := logging.Outcome{
		EntryKey:     key.String(),
		Phrase:       text,
		Satisfaction: satisfaction,
		Turn:         turn,
		Action:       action,
	}
	if evict {
		o.EvictedKey = victim.String()
	}
	if err := s.journal.LogOutcome(o); err != nil {
		s.logger.Warn("outcome journal write failed", zap.Error(err))
	}
}

// #endregion record

// #region flush
// Flush writes any pending changes. It returns the storage error if the write fails.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.flushLocked(ctx)
}

// Close stops the flusher, writes pending changes and closes the adapter.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		<-s.done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if err := s.flushLocked(context.Background()); err != nil {
		errs = append(errs, err)
	}
	if err := s.adapter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close adapter: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (s *Store) flushLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			// A failure stays in s.flushErr for the next caller.
			_ = s.flushLocked(context.Background())
			s.mu.Unlock()
		}
	}
}

func (s *Store) flushLocked(ctx context.Context) error {
	changes := s.pendingChangesLocked()
	if changes.Empty() {
		s.flushErr = nil
		return nil
	}
	if err := s.persistLocked(ctx, changes); err != nil {
		if s.flushErr == nil {
			s.logger.Error("pattern store flush failed", zap.Error(err),
				zap.Int("pending_puts", len(changes.Put)), zap.Int("pending_deletes", len(changes.Delete)))
		}
		s.flushErr = err
		return err
	}
	s.clearPendingLocked()
	s.flushErr = nil
	return nil
}

func (s *Store) pendingChangesLocked() persist.Changes {
	changes := persist.Changes{Put: make(map[string]persist.EntryDoc, len(s.dirty))}
	for k := range s.dirty {
		if e, ok := s.entries[k]; ok {
			changes.Put[k.String()] = EncodeEntry(e)
		}
	}
	for enc := range s.removed {
		changes.Delete = append(changes.Delete, enc)
	}
	slices.Sort(changes.Delete)
	return changes
}

func (s *Store) clearPendingLocked() {
	clear(s.dirty)
	clear(s.removed)
}

// persistLocked writes changes, incrementally when the adapter supports it and otherwise
// as a full document built from memory plus changes.
func (s *Store) persistLocked(ctx context.Context, changes persist.Changes) error {
	var err error
	if inc, ok := s.adapter.(persist.Incremental); ok {
		err = inc.Apply(ctx, changes)
	} else {
		doc := s.documentLocked()
		changes.ApplyTo(doc)
		err = s.adapter.Save(ctx, doc)
	}
	if err != nil && !errors.Is(err, persist.ErrStorageUnavailable) {
		err = fmt.Errorf("%w: %w", persist.ErrStorageUnavailable, err)
	}
	return err
}

func (s *Store) documentLocked() persist.Document {
	doc := make(persist.Document, len(s.entries))
	for k, e := range s.entries {
		doc[k.String()] = EncodeEntry(e)
	}
	return doc
}

// #endregion flush

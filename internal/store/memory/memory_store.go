// internal/store/memory/memory_store.go
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/avivl/editwarning/internal/lockservice"
	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
)

// StoreName is the registered name of the in-memory store
const StoreName = "memory"

var errClosed = errors.New("memory store closed")

func init() {
	lockservice.Register(StoreName, newStore)
}

func newStore(ctx context.Context, options lockservice.Config, logger *observability.SLogger) (store.LockStore, error) {
	cfg, ok := options.(*MemoryConfig)
	if !ok && options != nil {
		return nil, &store.InvalidConfigurationError{Store: StoreName, Config: options}
	}
	return New(ctx, cfg, logger)
}

// Store keeps lock records in process memory. Writes to one document are
// serialized by a per-document lock; different documents proceed in parallel.
type Store struct {
	config *MemoryConfig
	l      *observability.SLogger
	locks  *keyedLocker[int64]

	mu     sync.RWMutex
	docs   map[int64]map[int]store.LockRecord
	closed bool
}

// New creates an empty memory store. A nil config gets defaults.
func New(_ context.Context, config *MemoryConfig, logger *observability.SLogger) (*Store, error) {
	if config == nil {
		config = NewMemoryConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		config: config,
		l:      logger,
		locks:  newKeyedLocker[int64](),
		docs:   make(map[int64]map[int]store.LockRecord),
	}, nil
}

// GetConfig returns the current store configuration
func (s *Store) GetConfig() store.StoreConfig {
	return s.config
}

// Load returns the lock set of a document.
func (s *Store) Load(_ context.Context, documentID int64) (store.LockSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.LockSet{}, store.Unavailable("load", errClosed)
	}
	return s.snapshot(documentID), nil
}

// snapshot copies the records of a document. Callers hold s.mu.
func (s *Store) snapshot(documentID int64) store.LockSet {
	records := make([]store.LockRecord, 0, len(s.docs[documentID]))
	for _, rec := range s.docs[documentID] {
		records = append(records, rec)
	}
	return store.NewLockSet(documentID, records)
}

// Update runs fn while holding the document's lock and applies its mutations.
func (s *Store) Update(ctx context.Context, documentID int64, fn func(tx *store.Tx) error) error {
	unlock, err := s.locks.Acquire(ctx, documentID)
	if err != nil {
		return store.Unavailable("update", err)
	}
	defer unlock()

	set, err := s.Load(ctx, documentID)
	if err != nil {
		return err
	}

	tx := store.NewTx(set)
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.Changed() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.Unavailable("update", errClosed)
	}

	doc := s.docs[documentID]
	if doc == nil {
		doc = make(map[int]store.LockRecord)
		s.docs[documentID] = doc
	}
	for _, section := range tx.Deletes() {
		delete(doc, section)
	}
	for _, rec := range tx.Puts() {
		doc[rec.Section] = rec
	}
	if len(doc) == 0 {
		delete(s.docs, documentID)
	}
	return nil
}

// Save upserts rec by (document, section).
func (s *Store) Save(ctx context.Context, rec store.LockRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.Update(ctx, rec.DocumentID, func(tx *store.Tx) error {
		tx.Put(rec)
		return nil
	})
}

// Remove deletes the lock on one section of a document.
func (s *Store) Remove(ctx context.Context, documentID int64, section int) error {
	return s.Update(ctx, documentID, func(tx *store.Tx) error {
		tx.Delete(section)
		return nil
	})
}

// RemoveAll deletes every lock of a document.
func (s *Store) RemoveAll(ctx context.Context, documentID int64) error {
	return s.Update(ctx, documentID, func(tx *store.Tx) error {
		for _, rec := range tx.Loaded().Records() {
			tx.Delete(rec.Section)
		}
		return nil
	})
}

// RemoveByUser deletes the user's locks document by document.
func (s *Store) RemoveByUser(ctx context.Context, userID int64) error {
	ids, err := s.documentsMatching("remove by user", func(rec store.LockRecord) bool { return rec.UserID == userID })
	if err != nil {
		return err
	}
	for _, documentID := range ids {
		err := s.Update(ctx, documentID, func(tx *store.Tx) error {
			for _, rec := range tx.Loaded().HeldBy(userID) {
				tx.Delete(rec.Section)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RemoveExpired deletes locks acquired before the cutoff.
func (s *Store) RemoveExpired(ctx context.Context, before time.Time) (int, error) {
	ids, err := s.documentsMatching("remove expired", func(rec store.LockRecord) bool { return rec.AcquiredAt.Before(before) })
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, documentID := range ids {
		n := 0
		err := s.Update(ctx, documentID, func(tx *store.Tx) error {
			n = 0
			for _, rec := range tx.Loaded().Records() {
				if rec.AcquiredAt.Before(before) {
					tx.Delete(rec.Section)
					n++
				}
			}
			return nil
		})
		if err != nil {
			return removed, err
		}
		removed += n
	}
	if removed > 0 {
		s.l.Debugw("removed expired locks", "count", removed, "before", before)
	}
	return removed, nil
}

// documentsMatching lists, in ascending order, the documents holding a record that matches.
func (s *Store) documentsMatching(op string, match func(store.LockRecord) bool) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.Unavailable(op, errClosed)
	}

	var ids []int64
	for documentID, doc := range s.docs {
		for _, rec := range doc {
			if match(rec) {
				ids = append(ids, documentID)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Close drops every record. Later calls fail with ErrStoreUnavailable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.docs = make(map[int64]map[int]store.LockRecord)
}

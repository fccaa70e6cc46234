// internal/store/tx.go
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Tx is the unit of work handed to LockStore.Update. It exposes the document's
// lock set as loaded and records the mutations the backend must commit atomically.
type Tx struct {
	documentID int64
	loaded     LockSet
	current    map[int]LockRecord
	puts       map[int]LockRecord
	deletes    map[int]struct{}
}

// NewTx starts a unit of work over a freshly loaded lock set.
func NewTx(set LockSet) *Tx {
	current := make(map[int]LockRecord, len(set.Sections)+1)
	for _, rec := range set.Records() {
		current[rec.Section] = rec
	}
	return &Tx{
		documentID: set.DocumentID,
		loaded:     set,
		current:    current,
		puts:       make(map[int]LockRecord),
		deletes:    make(map[int]struct{}),
	}
}

// DocumentID returns the document the transaction is scoped to.
func (tx *Tx) DocumentID() int64 {
	return tx.documentID
}

// Loaded returns the lock set as read from the backend.
func (tx *Tx) Loaded() LockSet {
	return tx.loaded
}

// Locks returns the lock set with pending mutations applied.
func (tx *Tx) Locks() LockSet {
	records := make([]LockRecord, 0, len(tx.current))
	for _, rec := range tx.current {
		records = append(records, rec)
	}
	return NewLockSet(tx.documentID, records)
}

// Put upserts a record keyed by its section. The document id is forced to the transaction's.
func (tx *Tx) Put(rec LockRecord) {
	rec.DocumentID = tx.documentID
	delete(tx.deletes, rec.Section)
	tx.puts[rec.Section] = rec
	tx.current[rec.Section] = rec
}

// Delete removes the lock on section.
func (tx *Tx) Delete(section int) {
	delete(tx.puts, section)
	delete(tx.current, section)
	if tx.loadedHas(section) {
		tx.deletes[section] = struct{}{}
	}
}

func (tx *Tx) loadedHas(section int) bool {
	if section == ArticleSection {
		return tx.loaded.Article != nil
	}
	_, ok := tx.loaded.Section(section)
	return ok
}

// Puts returns the pending upserts ordered by section.
func (tx *Tx) Puts() []LockRecord {
	out := make([]LockRecord, 0, len(tx.puts))
	for _, rec := range tx.puts {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Section < out[j].Section })
	return out
}

// Deletes returns the sections to remove, ordered.
func (tx *Tx) Deletes() []int {
	out := make([]int, 0, len(tx.deletes))
	for section := range tx.deletes {
		out = append(out, section)
	}
	sort.Ints(out)
	return out
}

// Changed reports whether the transaction has anything to commit.
func (tx *Tx) Changed() bool {
	return len(tx.puts) > 0 || len(tx.deletes) > 0
}

// Retry runs attempt until it stops failing with ErrKeyModified, at most maxRetries+1 times.
func Retry(ctx context.Context, maxRetries int, interval time.Duration, attempt func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(maxRetries)),
		ctx,
	)
	return backoff.Retry(func() error {
		err := attempt()
		if err != nil && !errors.Is(err, ErrKeyModified) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
